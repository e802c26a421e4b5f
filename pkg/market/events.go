package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Event type names carried in the "e" field.
const (
	EventTrade      = "trade"
	EventAggTrade   = "aggTrade"
	EventKline      = "kline"
	EventMiniTicker = "24hrMiniTicker"
	EventDepth      = "depthUpdate"
)

// Fields whose keys differ from another field only by case are declared even
// when unused, so a case-insensitive decode cannot cross-assign them.

type Trade struct {
	Event        string      `json:"e"`
	EventTime    int64       `json:"E"`
	Symbol       string      `json:"s"`
	TradeID      int64       `json:"t"`
	Price        apd.Decimal `json:"p"`
	Quantity     apd.Decimal `json:"q"`
	TradeTime    int64       `json:"T"`
	IsBuyerMaker bool        `json:"m"`
	Ignore       bool        `json:"M"`
}

func (t *Trade) Validate() error {
	return expectEvent(t.Event, EventTrade)
}

func (t *Trade) Time() time.Time {
	return time.UnixMilli(t.TradeTime)
}

type AggTrade struct {
	Event        string      `json:"e"`
	EventTime    int64       `json:"E"`
	Symbol       string      `json:"s"`
	AggTradeID   int64       `json:"a"`
	Price        apd.Decimal `json:"p"`
	Quantity     apd.Decimal `json:"q"`
	FirstTradeID int64       `json:"f"`
	LastTradeID  int64       `json:"l"`
	TradeTime    int64       `json:"T"`
	IsBuyerMaker bool        `json:"m"`
	Ignore       bool        `json:"M"`
}

func (t *AggTrade) Validate() error {
	return expectEvent(t.Event, EventAggTrade)
}

func (t *AggTrade) Time() time.Time {
	return time.UnixMilli(t.TradeTime)
}

// Candle is the bar carried in a kline event.
type Candle struct {
	StartTime           int64       `json:"t"`
	CloseTime           int64       `json:"T"`
	Symbol              string      `json:"s"`
	Interval            string      `json:"i"`
	FirstTradeID        int64       `json:"f"`
	LastTradeID         int64       `json:"L"`
	Open                apd.Decimal `json:"o"`
	Close               apd.Decimal `json:"c"`
	High                apd.Decimal `json:"h"`
	Low                 apd.Decimal `json:"l"`
	Volume              apd.Decimal `json:"v"`
	NumTrades           int64       `json:"n"`
	Closed              bool        `json:"x"`
	QuoteVolume         apd.Decimal `json:"q"`
	TakerBuyVolume      apd.Decimal `json:"V"`
	TakerBuyQuoteVolume apd.Decimal `json:"Q"`
	Ignore              string      `json:"B"`
}

type Kline struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Candle    Candle `json:"k"`
}

func (k *Kline) Validate() error {
	return expectEvent(k.Event, EventKline)
}

type MiniTicker struct {
	Event       string      `json:"e"`
	EventTime   int64       `json:"E"`
	Symbol      string      `json:"s"`
	Close       apd.Decimal `json:"c"`
	Open        apd.Decimal `json:"o"`
	High        apd.Decimal `json:"h"`
	Low         apd.Decimal `json:"l"`
	Volume      apd.Decimal `json:"v"`
	QuoteVolume apd.Decimal `json:"q"`
}

func (m *MiniTicker) Validate() error {
	return expectEvent(m.Event, EventMiniTicker)
}

// BookTicker has no event type field; it is recognised by its update id.
type BookTicker struct {
	UpdateID int64       `json:"u"`
	Symbol   string      `json:"s"`
	BidPrice apd.Decimal `json:"b"`
	BidQty   apd.Decimal `json:"B"`
	AskPrice apd.Decimal `json:"a"`
	AskQty   apd.Decimal `json:"A"`
}

func (b *BookTicker) Validate() error {
	if b.UpdateID == 0 || b.Symbol == "" {
		return errors.New("book ticker without update id or symbol")
	}
	return nil
}

// PriceLevel is one side entry of a depth event.
type PriceLevel struct {
	Price    apd.Decimal
	Quantity apd.Decimal
}

// DepthUpdate is a diff depth event. Bids and asks stay as raw string pairs;
// Levels converts them.
type DepthUpdate struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

func (d *DepthUpdate) Validate() error {
	return expectEvent(d.Event, EventDepth)
}

// PartialDepth is a snapshot delivered on a depth<levels> stream.
type PartialDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (d *PartialDepth) Validate() error {
	if d.LastUpdateID == 0 {
		return errors.New("partial depth without lastUpdateId")
	}
	return nil
}

// Levels parses raw [price, quantity] pairs.
func Levels(raw [][]string) ([]PriceLevel, error) {
	levels := make([]PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("malformed price level %v", pair)
		}
		var level PriceLevel
		if err := parseDecimal(&level.Price, pair[0]); err != nil {
			return nil, err
		}
		if err := parseDecimal(&level.Quantity, pair[1]); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func parseDecimal(dest *apd.Decimal, s string) error {
	if _, _, err := apd.BaseContext.SetString(dest, s); err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return nil
}

func expectEvent(got, want string) error {
	if got != want {
		return fmt.Errorf("event type %q, want %q", got, want)
	}
	return nil
}

// CombinedEvent wraps a payload delivered on a /stream?streams= connection.
type CombinedEvent[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

func (c *CombinedEvent[T]) Validate() error {
	if c.Stream == "" {
		return errors.New("combined event without stream name")
	}
	if v, ok := any(&c.Data).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
