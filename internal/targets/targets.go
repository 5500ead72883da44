// Package targets computes bandarmology price targets from the dominant
// broker's accumulation and the state of the order book.
package targets

import (
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/bandarscope/internal/models"
)

var (
	markup       = decimal.New(5, -2) // a = 5% of the bandar average
	two          = decimal.NewFromInt(2)
	lotsPerBoard = decimal.NewFromInt(100)
)

// Input carries the numeric inputs of a target calculation.
type Input struct {
	RataRataBandar float64 // average accumulation price
	BarangBandar   float64 // accumulated lots
	OfferTeratas   float64
	BidTerbawah    float64
	TotalBid       float64 // hundreds of lots
	TotalOffer     float64 // hundreds of lots
	Harga          float64
}

// PriceFraction returns the IDX tick size (fraksi) for a price.
func PriceFraction(price float64) float64 {
	switch {
	case price < 200:
		return 1
	case price < 500:
		return 2
	case price < 2000:
		return 5
	case price < 5000:
		return 10
	default:
		return 25
	}
}

// BoardCount returns the number of whole ticks between bid and offer.
// An inverted or empty spread has zero boards.
func BoardCount(bidTerbawah, offerTeratas, fraksi float64) float64 {
	return boardCount(decimal.NewFromFloat(bidTerbawah), decimal.NewFromFloat(offerTeratas), decimal.NewFromFloat(fraksi)).InexactFloat64()
}

func boardCount(bid, offer, fraksi decimal.Decimal) decimal.Decimal {
	spread := offer.Sub(bid)
	if !spread.IsPositive() || !fraksi.IsPositive() {
		return decimal.Zero
	}
	return spread.Div(fraksi).Floor()
}

// Calculate derives the target metrics. It is pure: identical inputs always
// yield identical outputs.
func Calculate(in Input) models.TargetMetrics {
	fraksiF := PriceFraction(in.Harga)
	fraksi := decimal.NewFromFloat(fraksiF)

	avg := decimal.NewFromFloat(in.RataRataBandar)
	lots := decimal.NewFromFloat(in.BarangBandar)
	volume := decimal.NewFromFloat(in.TotalBid).Add(decimal.NewFromFloat(in.TotalOffer))

	papan := boardCount(decimal.NewFromFloat(in.BidTerbawah), decimal.NewFromFloat(in.OfferTeratas), fraksi)

	rataRataBidOfer := decimal.Zero
	if papan.IsPositive() {
		rataRataBidOfer = volume.Div(papan)
	}

	a := avg.Mul(markup)

	p := decimal.Zero
	if rataRataBidOfer.IsPositive() {
		p = lots.Div(rataRataBidOfer)
	}

	base := avg.Add(a)
	realistis := base.Add(p.Div(two).Mul(fraksi))
	maximum := base.Add(p.Mul(fraksi))

	return models.TargetMetrics{
		Fraksi:          fraksiF,
		TotalPapan:      papan.InexactFloat64(),
		RataRataBidOfer: rataRataBidOfer.Round(2).InexactFloat64(),
		A:               a.Round(2).InexactFloat64(),
		P:               p.Round(2).InexactFloat64(),
		TargetRealistis: realistis.Round(0).InexactFloat64(),
		TargetMax:       maximum.Round(0).InexactFloat64(),
	}
}

// ForSnapshot runs Calculate on a broker/snapshot pair. Snapshot volumes are in
// lots; the formula works in hundreds of lots per board.
func ForSnapshot(broker models.BrokerMetrics, snap models.MarketSnapshot) models.TargetMetrics {
	return Calculate(Input{
		RataRataBandar: broker.RataRataBandar,
		BarangBandar:   broker.BarangBandar,
		OfferTeratas:   snap.OfferTeratas,
		BidTerbawah:    snap.BidTerbawah,
		TotalBid:       decimal.NewFromFloat(snap.TotalBid).Div(lotsPerBoard).InexactFloat64(),
		TotalOffer:     decimal.NewFromFloat(snap.TotalOffer).Div(lotsPerBoard).InexactFloat64(),
		Harga:          snap.Harga,
	})
}
