package stockbit

import (
	"bytes"
	"encoding/json"
)

// MarketDetectorResponse is the /marketdetectors payload.
//
// Decoding never fails on shape. A "data" member that is not an object leaves
// Data empty and sets Malformed, which callers treat as "no broker rows".
type MarketDetectorResponse struct {
	Message   string             `json:"message"`
	Data      MarketDetectorData `json:"data"`
	Malformed bool               `json:"-"`
}

// UnmarshalJSON decodes the envelope leniently.
func (r *MarketDetectorResponse) UnmarshalJSON(b []byte) error {
	*r = MarketDetectorResponse{}
	var env struct {
		Message json.RawMessage `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		r.Malformed = true
		return nil
	}
	if !isNull(env.Message) {
		_ = json.Unmarshal(env.Message, &r.Message)
	}
	if isNull(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, &r.Data); err != nil {
		r.Data = MarketDetectorData{}
		r.Malformed = true
	}
	return nil
}

// MarketDetectorData holds the broker summary for the requested window.
type MarketDetectorData struct {
	BandarDetector json.RawMessage     `json:"bandar_detector"`
	BrokerSummary  BrokerSummarySource `json:"broker_summary"`
}

// BrokerSummarySource lists net buyers and net sellers.
type BrokerSummarySource struct {
	BrokersBuy  []BrokerBuy  `json:"brokers_buy"`
	BrokersSell []BrokerSell `json:"brokers_sell"`
}

// UnmarshalJSON decodes each row on its own and drops rows that do not fit.
func (s *BrokerSummarySource) UnmarshalJSON(b []byte) error {
	*s = BrokerSummarySource{}
	var raw struct {
		BrokersBuy  json.RawMessage `json:"brokers_buy"`
		BrokersSell json.RawMessage `json:"brokers_sell"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	s.BrokersBuy = decodeRows[BrokerBuy](raw.BrokersBuy)
	s.BrokersSell = decodeRows[BrokerSell](raw.BrokersSell)
	return nil
}

func decodeRows[T any](b json.RawMessage) []T {
	if isNull(b) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	rows := make([]T, 0, len(items))
	for _, item := range items {
		var row T
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// BrokerBuy is a net-buying broker row. Numeric fields are kept as text and
// parsed when ranking, so one bad value only disqualifies its own row.
type BrokerBuy struct {
	Code     string    `json:"netbs_broker_code"`
	Lot      RawNumber `json:"blot"`
	Value    RawNumber `json:"bval"`
	AvgPrice RawNumber `json:"netbs_buy_avg_price"`
	Type     string    `json:"type"`
}

// BrokerSell is a net-selling broker row. Lot and value are negative.
type BrokerSell struct {
	Code     string    `json:"netbs_broker_code"`
	Lot      RawNumber `json:"slot"`
	Value    RawNumber `json:"sval"`
	AvgPrice RawNumber `json:"netbs_sell_avg_price"`
	Type     string    `json:"type"`
}

// OrderbookResponse is the orderbook payload. Some deployments wrap the book
// in "data", others return it bare.
//
// Decoding never fails. A payload whose shape does not match Orderbook sets
// Malformed and NormalizeOrderbook reports it as ErrInvalidOrderbook.
type OrderbookResponse struct {
	Orderbook
	Malformed bool `json:"-"`
}

// UnmarshalJSON unwraps "data" when it is present and not null.
func (r *OrderbookResponse) UnmarshalJSON(b []byte) error {
	*r = OrderbookResponse{}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		r.Malformed = true
		return nil
	}
	body := b
	if !isNull(env.Data) {
		body = env.Data
	}
	if err := json.Unmarshal(body, &r.Orderbook); err != nil {
		r.Orderbook = Orderbook{}
		r.Malformed = true
	}
	return nil
}

// Book returns the decoded book.
func (r *OrderbookResponse) Book() *Orderbook {
	return &r.Orderbook
}

// Orderbook is the raw order book for one ticker.
type Orderbook struct {
	Symbol        string         `json:"symbol"`
	Close         RawNumber      `json:"close"`
	High          RawNumber      `json:"high"`
	Bid           []PriceLevel   `json:"bid"`
	Offer         []PriceLevel   `json:"offer"`
	TotalBidOffer *TotalBidOffer `json:"total_bid_offer"`
}

// PriceLevel is a single bid or offer row.
type PriceLevel struct {
	Price  RawNumber `json:"price"`
	QueNum RawNumber `json:"que_num"`
	Volume RawNumber `json:"volume"`
}

// TotalBidOffer carries aggregate book volume per side.
type TotalBidOffer struct {
	Bid   SideTotal `json:"bid"`
	Offer SideTotal `json:"offer"`
}

// SideTotal is a lot count with thousands grouping. Both "1,234,567" and the
// id-ID form "1.234.567" occur; see ParseLot.
type SideTotal struct {
	Lot  RawNumber `json:"lot"`
	Freq RawNumber `json:"freq"`
}

// RawNumber holds a numeric field as text. The feed mixes quoted and bare
// numbers and occasionally sends placeholders such as "" or "-".
type RawNumber string

// UnmarshalJSON keeps the content of strings and the raw text of anything
// else. null becomes empty. It never fails, so a bad value surfaces when the
// field is parsed rather than while the payload is decoded.
func (n *RawNumber) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*n = RawNumber(s)
			return nil
		}
	}
	if isNull(b) {
		*n = ""
		return nil
	}
	*n = RawNumber(b)
	return nil
}

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || string(b) == "null"
}

// EmitenInfoResponse is the /emitten/{code}/info payload.
type EmitenInfoResponse struct {
	Data EmitenInfo `json:"data"`
}

// EmitenInfo carries instrument metadata. Only the sector is consumed.
type EmitenInfo struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	SubSector string `json:"sub_sector"`
}
