package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name        string
		query       Query
		wantErr     bool
		wantMissing bool
	}{
		{
			name:  "valid single date",
			query: Query{Emiten: "BBCA", FromDate: "2024-05-01", ToDate: "2024-05-01"},
		},
		{
			name:  "valid range",
			query: Query{Emiten: "BBCA", FromDate: "2024-05-01", ToDate: "2024-05-10"},
		},
		{
			name:        "missing emiten",
			query:       Query{FromDate: "2024-05-01", ToDate: "2024-05-01"},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "missing toDate",
			query:       Query{Emiten: "BBCA", FromDate: "2024-05-01"},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:    "bad date format",
			query:   Query{Emiten: "BBCA", FromDate: "01/05/2024", ToDate: "2024-05-01"},
			wantErr: true,
		},
		{
			name:    "inverted range",
			query:   Query{Emiten: "BBCA", FromDate: "2024-05-02", ToDate: "2024-05-01"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Query.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantMissing && !errors.Is(err, ErrMissingFields) {
				t.Errorf("expected ErrMissingFields, got %v", err)
			}
			if tt.wantErr && !IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Emiten: " bbca ", FromDate: " 2024-05-01", ToDate: "2024-05-01 "}.Normalize()
	if q.Emiten != "BBCA" {
		t.Errorf("emiten = %q, want BBCA", q.Emiten)
	}
	if !q.IsSingleDate() {
		t.Error("expected single date after trimming")
	}
}

func TestStockQueryRoundTrip(t *testing.T) {
	q := Query{Emiten: "BBCA", FromDate: "2024-05-01", ToDate: "2024-05-01"}
	broker := BrokerMetrics{Bandar: "YP", BarangBandar: 500000, RataRataBandar: 9000}
	snap := MarketSnapshot{Harga: 9150, OfferTeratas: 9180, BidTerbawah: 9100, TotalBid: 120000, TotalOffer: 80000}
	targets := TargetMetrics{Fraksi: 25, TotalPapan: 3, RataRataBidOfer: 666.67, A: 450, P: 750, TargetRealistis: 18825, TargetMax: 28200}

	res := NewResult(q, broker, snap, targets)
	res.Sector = "Finance"

	rec := NewStockQuery(res, time.Now())
	if rec.ID == "" {
		t.Fatal("expected generated ID")
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rec.Broker() != broker {
		t.Errorf("Broker() = %+v, want %+v", rec.Broker(), broker)
	}
	if rec.Snapshot() != snap {
		t.Errorf("Snapshot() = %+v, want %+v", rec.Snapshot(), snap)
	}
	if rec.Targets() != targets {
		t.Errorf("Targets() = %+v, want %+v", rec.Targets(), targets)
	}

	other := NewStockQuery(res, time.Now())
	if other.ID == rec.ID {
		t.Error("expected distinct IDs for independent records")
	}
}

func TestStockQueryValidate(t *testing.T) {
	base := func() *StockQuery {
		return &StockQuery{
			ID:        "id-1",
			Emiten:    "BBCA",
			FromDate:  "2024-05-01",
			ToDate:    "2024-05-01",
			Bandar:    "YP",
			Harga:     9150,
			CreatedAt: time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(q *StockQuery)
		wantErr bool
	}{
		{name: "valid", mutate: func(q *StockQuery) {}},
		{name: "empty ID", mutate: func(q *StockQuery) { q.ID = "" }, wantErr: true},
		{name: "empty emiten", mutate: func(q *StockQuery) { q.Emiten = "" }, wantErr: true},
		{name: "bad date", mutate: func(q *StockQuery) { q.ToDate = "yesterday" }, wantErr: true},
		{name: "negative volume", mutate: func(q *StockQuery) { q.TotalBid = -1 }, wantErr: true},
		{name: "zero created at", mutate: func(q *StockQuery) { q.CreatedAt = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := base()
			tt.mutate(q)
			if err := q.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("StockQuery.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResultJSONShape(t *testing.T) {
	res := NewResult(
		Query{Emiten: "BBCA", FromDate: "2024-05-01", ToDate: "2024-05-01"},
		BrokerMetrics{Bandar: "YP"},
		MarketSnapshot{Harga: 9150},
		TargetMetrics{Fraksi: 25},
	)
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}

	market, ok := m["marketData"].(map[string]any)
	if !ok {
		t.Fatalf("marketData missing: %s", b)
	}
	if market["harga"] != 9150.0 || market["fraksi"] != 25.0 {
		t.Errorf("marketData not flattened: %v", market)
	}
	if _, ok := m["isFromHistory"]; ok {
		t.Error("isFromHistory should be omitted for live results")
	}
	if _, ok := m["brokerSummary"]; !ok {
		t.Error("brokerSummary should be present (null) in the payload")
	}
}

func TestResultJSONShape_History(t *testing.T) {
	tests := []struct {
		name  string
		stale bool
	}{
		{"same period", false},
		{"other period", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResult(Query{Emiten: "BBCA", FromDate: "2024-05-01", ToDate: "2024-05-01"}, BrokerMetrics{}, MarketSnapshot{}, TargetMetrics{})
			res.MarkFromHistory(tt.stale, "2024-05-01")
			if !res.FromHistory() {
				t.Error("FromHistory should be true once marked")
			}

			b, err := json.Marshal(res)
			if err != nil {
				t.Fatal(err)
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatal(err)
			}
			got, ok := m["isFromHistory"]
			if !ok {
				t.Fatalf("isFromHistory must be emitted on history results: %s", b)
			}
			if got != tt.stale {
				t.Errorf("isFromHistory = %v, want %v", got, tt.stale)
			}
			if m["historyDate"] != "2024-05-01" {
				t.Errorf("historyDate = %v", m["historyDate"])
			}
		})
	}
}
