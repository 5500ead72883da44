package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/bandarscope/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: 9150.50", "Price: 9150\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// chat ID is parsed before any network call to the Bot API
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func testResult() *models.Result {
	r := models.NewResult(
		models.Query{Emiten: "BBCA", FromDate: "2025-01-15", ToDate: "2025-01-15"},
		models.BrokerMetrics{Bandar: "YP", BarangBandar: 500000, RataRataBandar: 9000},
		models.MarketSnapshot{Harga: 9150, OfferTeratas: 9180, BidTerbawah: 9100, TotalBid: 120000, TotalOffer: 80000},
		models.TargetMetrics{Fraksi: 25, TotalPapan: 3, RataRataBidOfer: 666.67, A: 450, P: 750, TargetRealistis: 18825, TargetMax: 28200},
	)
	r.Sector = "Finance"
	return r
}

func TestFormatResult(t *testing.T) {
	msg := formatResult(testResult())

	for _, want := range []string{
		"*BBCA* targets for 2025\\-01\\-15",
		"Finance",
		"Bandar: *YP* 500000 lot @ 9000",
		"Rata\\-rata bid/offer: 666\\.67",
		"Target realistis: *18825*",
		"Target max: *28200*",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

type fakeLookup struct {
	rec *models.StockQuery
	err error
	got string
}

func (f *fakeLookup) LatestStockQuery(ctx context.Context, emiten string) (*models.StockQuery, error) {
	f.got = emiten
	return f.rec, f.err
}

func TestCommandReply(t *testing.T) {
	rec := models.NewStockQuery(testResult(), time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC))
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		text, ok := commandReply(ctx, &fakeLookup{}, "ping", "")
		if !ok || text != "Pong" {
			t.Errorf("got %q, %v", text, ok)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, ok := commandReply(ctx, &fakeLookup{}, "start", ""); ok {
			t.Error("unknown commands should be ignored")
		}
	})

	t.Run("target usage", func(t *testing.T) {
		text, ok := commandReply(ctx, &fakeLookup{}, "target", "  ")
		if !ok || !strings.Contains(text, "Usage") {
			t.Errorf("got %q, %v", text, ok)
		}
	})

	t.Run("target found", func(t *testing.T) {
		lookup := &fakeLookup{rec: rec}
		text, ok := commandReply(ctx, lookup, "target", " bbca ")
		if !ok {
			t.Fatal("expected reply")
		}
		if lookup.got != "BBCA" {
			t.Errorf("lookup used %q, want BBCA", lookup.got)
		}
		if !strings.Contains(text, "*BBCA* stored targets for 2025\\-01\\-15") {
			t.Errorf("unexpected reply:\n%s", text)
		}
		if !strings.Contains(text, "Target max: *28200*") {
			t.Errorf("unexpected reply:\n%s", text)
		}
	})

	t.Run("target missing", func(t *testing.T) {
		text, _ := commandReply(ctx, &fakeLookup{}, "target", "TLKM")
		if !strings.Contains(text, "No stored targets for TLKM") {
			t.Errorf("got %q", text)
		}
	})

	t.Run("target lookup error", func(t *testing.T) {
		text, _ := commandReply(ctx, &fakeLookup{err: errors.New("db locked")}, "target", "TLKM")
		if !strings.Contains(text, "Failed to read stored targets") {
			t.Errorf("got %q", text)
		}
	})
}

func TestFormatRecord_Range(t *testing.T) {
	rec := models.NewStockQuery(testResult(), time.Now())
	rec.FromDate = "2025-01-10"

	msg := formatRecord(rec)
	if !strings.Contains(msg, "2025\\-01\\-10 to 2025\\-01\\-15") {
		t.Errorf("expected period range in message:\n%s", msg)
	}
}
