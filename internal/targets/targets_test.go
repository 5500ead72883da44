package targets

import (
	"math"
	"testing"

	"github.com/rewired-gh/bandarscope/internal/models"
)

func TestPriceFraction(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{50, 1},
		{199, 1},
		{200, 2},
		{499, 2},
		{500, 5},
		{1995, 5},
		{2000, 10},
		{4990, 10},
		{5000, 25},
		{9150, 25},
		{0, 1},
	}

	for _, tt := range tests {
		if got := PriceFraction(tt.price); got != tt.want {
			t.Errorf("PriceFraction(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestBoardCount(t *testing.T) {
	tests := []struct {
		name             string
		bid, offer, frak float64
		want             float64
	}{
		{"exact", 9100, 9200, 25, 4},
		{"truncates partial tick", 9100, 9180, 25, 3},
		{"empty spread", 9100, 9100, 25, 0},
		{"inverted spread", 9200, 9100, 25, 0},
		{"thin book without bids", 0, 515, 5, 103},
		{"zero fraction", 100, 200, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BoardCount(tt.bid, tt.offer, tt.frak)
			if got != tt.want {
				t.Errorf("BoardCount(%v, %v, %v) = %v, want %v", tt.bid, tt.offer, tt.frak, got, tt.want)
			}
			if got < 0 {
				t.Errorf("board count must not be negative, got %v", got)
			}
		})
	}
}

func TestBoardCount_ConsistentWithIntegerDivision(t *testing.T) {
	for _, frak := range []float64{1, 2, 5, 10, 25} {
		for bid := 0.0; bid <= 500; bid += 37 {
			for offer := bid; offer <= bid+600; offer += 41 {
				got := BoardCount(bid, offer, frak)
				want := math.Floor((offer - bid) / frak)
				if got != want {
					t.Fatalf("BoardCount(%v, %v, %v) = %v, want %v", bid, offer, frak, got, want)
				}
			}
		}
	}
}

func TestCalculate(t *testing.T) {
	got := Calculate(Input{
		RataRataBandar: 9000,
		BarangBandar:   500000,
		OfferTeratas:   9180,
		BidTerbawah:    9100,
		TotalBid:       1200,
		TotalOffer:     800,
		Harga:          9150,
	})

	want := models.TargetMetrics{
		Fraksi:          25,
		TotalPapan:      3,
		RataRataBidOfer: 666.67,
		A:               450,
		P:               750,
		TargetRealistis: 18825,
		TargetMax:       28200,
	}
	if got != want {
		t.Errorf("Calculate() = %+v, want %+v", got, want)
	}
}

func TestCalculate_DegenerateBook(t *testing.T) {
	got := Calculate(Input{
		RataRataBandar: 480,
		BarangBandar:   1000,
		OfferTeratas:   490,
		BidTerbawah:    490,
		TotalBid:       10,
		TotalOffer:     10,
		Harga:          490,
	})

	if got.TotalPapan != 0 || got.RataRataBidOfer != 0 || got.P != 0 {
		t.Errorf("expected zero boards/ratios for empty spread, got %+v", got)
	}
	if got.A != 24 {
		t.Errorf("A = %v, want 24", got.A)
	}
	if got.TargetRealistis != 504 || got.TargetMax != 504 {
		t.Errorf("targets should collapse to avg+a, got %+v", got)
	}
	for _, v := range []float64{got.RataRataBidOfer, got.A, got.P, got.TargetRealistis, got.TargetMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite output: %+v", got)
		}
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	in := Input{
		RataRataBandar: 1234.5,
		BarangBandar:   98765,
		OfferTeratas:   1300,
		BidTerbawah:    1150,
		TotalBid:       4321.09,
		TotalOffer:     1234.56,
		Harga:          1245,
	}
	first := Calculate(in)
	for i := 0; i < 100; i++ {
		if got := Calculate(in); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestForSnapshot(t *testing.T) {
	broker := models.BrokerMetrics{Bandar: "YP", BarangBandar: 500000, RataRataBandar: 9000}
	snap := models.MarketSnapshot{Harga: 9150, OfferTeratas: 9180, BidTerbawah: 9100, TotalBid: 120000, TotalOffer: 80000}

	got := ForSnapshot(broker, snap)
	want := Calculate(Input{
		RataRataBandar: 9000,
		BarangBandar:   500000,
		OfferTeratas:   9180,
		BidTerbawah:    9100,
		TotalBid:       1200,
		TotalOffer:     800,
		Harga:          9150,
	})
	if got != want {
		t.Errorf("ForSnapshot() = %+v, want %+v", got, want)
	}
}
