package stockbit

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/bandarscope/internal/logger"
	"github.com/rewired-gh/bandarscope/internal/models"
)

// ErrInvalidOrderbook means the orderbook payload no longer carries the fields
// the calculation depends on. It signals an upstream contract change and is
// never recovered from history.
var ErrInvalidOrderbook = errors.New("Invalid Orderbook API response structure")

// dottedGroups matches id-ID grouping such as "1.234.567" or "1.234,5".
var dottedGroups = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)

// brokerRow is a broker row whose numeric fields parsed.
type brokerRow struct {
	code     string
	lot      decimal.Decimal
	value    decimal.Decimal
	avgPrice decimal.Decimal
}

// DominantBroker picks the broker with the largest net accumulated lots.
// The boolean is false when the feed has no usable broker rows, which happens
// when the market has not opened, the ticker is inactive or the payload is
// malformed.
func DominantBroker(resp *MarketDetectorResponse) (models.BrokerMetrics, bool) {
	buyers := rankedBuyers(resp)
	if len(buyers) == 0 {
		return models.BrokerMetrics{}, false
	}
	top := buyers[0]
	return models.BrokerMetrics{
		Bandar:         top.code,
		BarangBandar:   top.lot.Round(0).InexactFloat64(),
		RataRataBandar: top.avgPrice.Round(0).InexactFloat64(),
	}, true
}

// SummarizeBrokers builds the ranked broker table with up to n rows per side.
// It returns nil exactly when DominantBroker finds no broker.
func SummarizeBrokers(resp *MarketDetectorResponse, n int) *models.BrokerSummary {
	buyers := rankedBuyers(resp)
	if len(buyers) == 0 {
		return nil
	}

	summary := &models.BrokerSummary{
		TopBuyers:  make([]models.BrokerRow, 0, n),
		TopSellers: make([]models.BrokerRow, 0, n),
	}
	if !isNull(resp.Data.BandarDetector) {
		summary.Detector = resp.Data.BandarDetector
	}

	for i := 0; i < len(buyers) && i < n; i++ {
		b := buyers[i]
		summary.TopBuyers = append(summary.TopBuyers, models.BrokerRow{
			Code:     b.code,
			Lot:      b.lot.InexactFloat64(),
			Value:    b.value.InexactFloat64(),
			AvgPrice: b.avgPrice.InexactFloat64(),
		})
	}

	sellers := make([]brokerRow, 0, len(resp.Data.BrokerSummary.BrokersSell))
	for _, s := range resp.Data.BrokerSummary.BrokersSell {
		code := strings.TrimSpace(s.Code)
		lot, ok := parseNumber(s.Lot)
		if code == "" || !ok {
			continue
		}
		value, _ := parseNumber(s.Value)
		avg, _ := parseNumber(s.AvgPrice)
		sellers = append(sellers, brokerRow{code: code, lot: lot, value: value, avgPrice: avg})
	}
	// most negative net lots first
	sort.SliceStable(sellers, func(i, j int) bool {
		return sellers[i].lot.Abs().GreaterThan(sellers[j].lot.Abs())
	})
	for i := 0; i < len(sellers) && i < n; i++ {
		s := sellers[i]
		summary.TopSellers = append(summary.TopSellers, models.BrokerRow{
			Code:     s.code,
			Lot:      s.lot.Abs().InexactFloat64(),
			Value:    s.value.Abs().InexactFloat64(),
			AvgPrice: s.avgPrice.InexactFloat64(),
		})
	}

	return summary
}

// rankedBuyers returns the usable buy rows ordered by net lots, then net value,
// then broker code. Rows with a blank code, an unparseable lot or average
// price, or a non-positive lot are dropped. An unparseable value counts as 0.
func rankedBuyers(resp *MarketDetectorResponse) []brokerRow {
	if resp == nil {
		return nil
	}
	rows := make([]brokerRow, 0, len(resp.Data.BrokerSummary.BrokersBuy))
	for _, b := range resp.Data.BrokerSummary.BrokersBuy {
		code := strings.TrimSpace(b.Code)
		if code == "" {
			continue
		}
		lot, ok := parseNumber(b.Lot)
		if !ok || !lot.IsPositive() {
			continue
		}
		avg, ok := parseNumber(b.AvgPrice)
		if !ok {
			continue
		}
		value, _ := parseNumber(b.Value)
		rows = append(rows, brokerRow{code: code, lot: lot, value: value, avgPrice: avg})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].lot.Cmp(rows[j].lot); c != 0 {
			return c > 0
		}
		if c := rows[i].value.Cmp(rows[j].value); c != 0 {
			return c > 0
		}
		return rows[i].code < rows[j].code
	})
	return rows
}

// NormalizeOrderbook converts a raw orderbook into a market snapshot. Any
// structural problem, including unparseable close or total lots, is reported
// as ErrInvalidOrderbook. Price levels whose price does not parse are skipped.
func NormalizeOrderbook(resp *OrderbookResponse) (models.MarketSnapshot, error) {
	if resp == nil || resp.Malformed {
		return models.MarketSnapshot{}, ErrInvalidOrderbook
	}
	book := resp.Book()
	if book.TotalBidOffer == nil {
		return models.MarketSnapshot{}, ErrInvalidOrderbook
	}
	harga, ok := parseNumber(book.Close)
	if !ok {
		logger.Debug("Orderbook close %q is not a number", string(book.Close))
		return models.MarketSnapshot{}, ErrInvalidOrderbook
	}

	totalBid, err := ParseLot(string(book.TotalBidOffer.Bid.Lot))
	if err != nil {
		logger.Debug("Orderbook total bid: %v", err)
		return models.MarketSnapshot{}, ErrInvalidOrderbook
	}
	totalOffer, err := ParseLot(string(book.TotalBidOffer.Offer.Lot))
	if err != nil {
		logger.Debug("Orderbook total offer: %v", err)
		return models.MarketSnapshot{}, ErrInvalidOrderbook
	}

	snap := models.MarketSnapshot{
		Harga:      harga.InexactFloat64(),
		TotalBid:   totalBid,
		TotalOffer: totalOffer,
	}

	if top, ok := extremePrice(book.Offer, decimal.Decimal.GreaterThan); ok {
		snap.OfferTeratas = top.InexactFloat64()
	} else if high, ok := parseNumber(book.High); ok {
		snap.OfferTeratas = high.InexactFloat64()
	}

	if bottom, ok := extremePrice(book.Bid, decimal.Decimal.LessThan); ok {
		snap.BidTerbawah = bottom.InexactFloat64()
	}

	return snap, nil
}

// extremePrice returns the parseable price that is better than all others.
// The boolean is false when no level has a parseable price.
func extremePrice(levels []PriceLevel, better func(a, b decimal.Decimal) bool) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, l := range levels {
		p, ok := parseNumber(l.Price)
		if !ok {
			continue
		}
		if !found || better(p, best) {
			best, found = p, true
		}
	}
	return best, found
}

// parseNumber parses a feed number with comma grouping. Empty text and
// placeholders such as "-" do not parse.
func parseNumber(n RawNumber) (decimal.Decimal, bool) {
	cleaned := stripSpaces(string(n))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseLot converts a formatted lot count to a whole number of lots. Comma
// grouping ("1,234,567") and id-ID dot grouping ("1.234.567", "1.234,5") are
// both accepted. A single dot followed by exactly three digits is read as
// grouping since lot totals are never fractional to the thousandth. An empty
// string is zero lots.
func ParseLot(s string) (float64, error) {
	cleaned := stripSpaces(s)
	if dottedGroups.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	if cleaned == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid lot value %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid lot value %q: negative", s)
	}
	return d.Floor().InexactFloat64(), nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)
}
