package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BrokerMetrics describes the dominant accumulating broker (bandar) for a period.
type BrokerMetrics struct {
	Bandar         string  `json:"bandar"`
	BarangBandar   float64 `json:"barangBandar"`   // accumulated lots
	RataRataBandar float64 `json:"rataRataBandar"` // average accumulation price
}

// BrokerRow is one line of the ranked broker summary.
type BrokerRow struct {
	Code     string  `json:"code"`
	Lot      float64 `json:"lot"`
	Value    float64 `json:"value"`
	AvgPrice float64 `json:"avgPrice"`
}

// BrokerSummary is the ranked broker table shown next to the targets.
// Detector is passed through from the feed untouched.
type BrokerSummary struct {
	Detector   json.RawMessage `json:"detector,omitempty"`
	TopBuyers  []BrokerRow     `json:"topBuyers"`
	TopSellers []BrokerRow     `json:"topSellers"`
}

// MarketSnapshot is the market state used for the calculation, either live
// from the orderbook or read back from history.
type MarketSnapshot struct {
	Harga        float64 `json:"harga"`        // last price
	OfferTeratas float64 `json:"offerTeratas"` // highest offer level (ARA side)
	BidTerbawah  float64 `json:"bidTerbawah"`  // lowest bid level (ARB side)
	TotalBid     float64 `json:"totalBid"`     // lots
	TotalOffer   float64 `json:"totalOffer"`   // lots
}

// Validate checks snapshot field constraints.
func (s MarketSnapshot) Validate() error {
	if s.Harga < 0 {
		return errors.New("harga must not be negative")
	}
	if s.OfferTeratas < 0 || s.BidTerbawah < 0 {
		return errors.New("book extremes must not be negative")
	}
	if s.TotalBid < 0 || s.TotalOffer < 0 {
		return errors.New("bid/offer volume must not be negative")
	}
	return nil
}

// TargetMetrics holds the calculator output.
type TargetMetrics struct {
	Fraksi          float64 `json:"fraksi"`
	TotalPapan      float64 `json:"totalPapan"`
	RataRataBidOfer float64 `json:"rataRataBidOfer"`
	A               float64 `json:"a"`
	P               float64 `json:"p"`
	TargetRealistis float64 `json:"targetRealistis1"`
	TargetMax       float64 `json:"targetMax"`
}

// MarketData is the response view of a snapshot plus its tick size.
type MarketData struct {
	MarketSnapshot
	Fraksi float64 `json:"fraksi"`
}

// Calculated is the response view of the target metrics without the tick size.
type Calculated struct {
	TotalPapan      float64 `json:"totalPapan"`
	RataRataBidOfer float64 `json:"rataRataBidOfer"`
	A               float64 `json:"a"`
	P               float64 `json:"p"`
	TargetRealistis float64 `json:"targetRealistis1"`
	TargetMax       float64 `json:"targetMax"`
}

// Result is the assembled analytics record returned to callers.
type Result struct {
	Input         Query          `json:"input"`
	StockbitData  BrokerMetrics  `json:"stockbitData"`
	MarketData    MarketData     `json:"marketData"`
	Calculated    Calculated     `json:"calculated"`
	BrokerSummary *BrokerSummary `json:"brokerSummary"`
	Sector        string         `json:"sector,omitempty"`
	IsFromHistory *bool          `json:"isFromHistory,omitempty"`
	HistoryDate   string         `json:"historyDate,omitempty"`
}

// MarkFromHistory flags a result served from a stored record. stale reports
// whether the stored period differs from the one requested. Live results leave
// the flag unset so the key is omitted.
func (r *Result) MarkFromHistory(stale bool, historyDate string) {
	r.IsFromHistory = &stale
	r.HistoryDate = historyDate
}

// FromHistory reports whether the result came from a stored record.
func (r *Result) FromHistory() bool {
	return r.IsFromHistory != nil
}

// NewResult assembles a result from its parts.
func NewResult(q Query, broker BrokerMetrics, snap MarketSnapshot, t TargetMetrics) *Result {
	return &Result{
		Input:        q,
		StockbitData: broker,
		MarketData:   MarketData{MarketSnapshot: snap, Fraksi: t.Fraksi},
		Calculated: Calculated{
			TotalPapan:      t.TotalPapan,
			RataRataBidOfer: t.RataRataBidOfer,
			A:               t.A,
			P:               t.P,
			TargetRealistis: t.TargetRealistis,
			TargetMax:       t.TargetMax,
		},
	}
}

// StockQuery is a persisted single-date analytics record. Records are append-only;
// a later query for the same key writes a new row.
type StockQuery struct {
	ID       string `json:"id"`
	Emiten   string `json:"emiten"`
	Sector   string `json:"sector,omitempty"`
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`

	Bandar         string  `json:"bandar"`
	BarangBandar   float64 `json:"barangBandar"`
	RataRataBandar float64 `json:"rataRataBandar"`

	Harga      float64 `json:"harga"`
	ARA        float64 `json:"ara"`
	ARB        float64 `json:"arb"`
	TotalBid   float64 `json:"totalBid"`
	TotalOffer float64 `json:"totalOffer"`

	Fraksi          float64 `json:"fraksi"`
	TotalPapan      float64 `json:"totalPapan"`
	RataRataBidOfer float64 `json:"rataRataBidOfer"`
	A               float64 `json:"a"`
	P               float64 `json:"p"`
	TargetRealistis float64 `json:"targetRealistis"`
	TargetMax       float64 `json:"targetMax"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewStockQuery flattens a computed result into a new record with a fresh ID.
func NewStockQuery(r *Result, createdAt time.Time) *StockQuery {
	return &StockQuery{
		ID:              uuid.New().String(),
		Emiten:          r.Input.Emiten,
		Sector:          r.Sector,
		FromDate:        r.Input.FromDate,
		ToDate:          r.Input.ToDate,
		Bandar:          r.StockbitData.Bandar,
		BarangBandar:    r.StockbitData.BarangBandar,
		RataRataBandar:  r.StockbitData.RataRataBandar,
		Harga:           r.MarketData.Harga,
		ARA:             r.MarketData.OfferTeratas,
		ARB:             r.MarketData.BidTerbawah,
		TotalBid:        r.MarketData.TotalBid,
		TotalOffer:      r.MarketData.TotalOffer,
		Fraksi:          r.MarketData.Fraksi,
		TotalPapan:      r.Calculated.TotalPapan,
		RataRataBidOfer: r.Calculated.RataRataBidOfer,
		A:               r.Calculated.A,
		P:               r.Calculated.P,
		TargetRealistis: r.Calculated.TargetRealistis,
		TargetMax:       r.Calculated.TargetMax,
		CreatedAt:       createdAt,
	}
}

// Broker returns the stored broker metrics.
func (q *StockQuery) Broker() BrokerMetrics {
	return BrokerMetrics{Bandar: q.Bandar, BarangBandar: q.BarangBandar, RataRataBandar: q.RataRataBandar}
}

// Snapshot returns the stored market snapshot.
func (q *StockQuery) Snapshot() MarketSnapshot {
	return MarketSnapshot{
		Harga:        q.Harga,
		OfferTeratas: q.ARA,
		BidTerbawah:  q.ARB,
		TotalBid:     q.TotalBid,
		TotalOffer:   q.TotalOffer,
	}
}

// Targets returns the stored target metrics.
func (q *StockQuery) Targets() TargetMetrics {
	return TargetMetrics{
		Fraksi:          q.Fraksi,
		TotalPapan:      q.TotalPapan,
		RataRataBidOfer: q.RataRataBidOfer,
		A:               q.A,
		P:               q.P,
		TargetRealistis: q.TargetRealistis,
		TargetMax:       q.TargetMax,
	}
}

// Validate checks record field constraints.
func (q *StockQuery) Validate() error {
	if q.ID == "" {
		return errors.New("record ID must not be empty")
	}
	if q.Emiten == "" {
		return errors.New("emiten must not be empty")
	}
	if _, err := time.Parse(DateLayout, q.FromDate); err != nil {
		return errors.New("from date must be formatted as YYYY-MM-DD")
	}
	if _, err := time.Parse(DateLayout, q.ToDate); err != nil {
		return errors.New("to date must be formatted as YYYY-MM-DD")
	}
	if q.Bandar == "" {
		return errors.New("bandar must not be empty")
	}
	if err := q.Snapshot().Validate(); err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}
