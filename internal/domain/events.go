package domain

import "time"

// Event is any timestamped input the simulation consumes. The driver
// feeds events strictly in timestamp order, one at a time.
type Event interface {
	When() time.Time
}

// PriceUpdate is a price tick for one outcome token. Bid/Ask/Volume24h
// are optional; 0 means not provided and the book synthesizer fills the
// gap from the mid price and its rolling volume estimate.
type PriceUpdate struct {
	Key       MarketKey
	Price     float64
	Bid       float64
	Ask       float64
	Volume24h float64
	Timestamp time.Time
}

func (e PriceUpdate) When() time.Time { return e.Timestamp }

// MarketTrade is an observed trade on the venue. It only refreshes the
// rolling volume estimate and last price; it never matches orders.
type MarketTrade struct {
	Key       MarketKey
	Side      Side
	Price     float64
	Size      float64
	Timestamp time.Time
}

func (e MarketTrade) When() time.Time { return e.Timestamp }

// MarketResolved settles one outcome token at its final price.
type MarketResolved struct {
	Key             MarketKey
	ResolutionPrice float64
	Timestamp       time.Time
}

func (e MarketResolved) When() time.Time { return e.Timestamp }

// OrderEventType discriminates order outcome events.
type OrderEventType string

const (
	OrderEventFilled    OrderEventType = "ORDER_FILLED"
	OrderEventPlaced    OrderEventType = "ORDER_PLACED"
	OrderEventCancelled OrderEventType = "ORDER_CANCELLED"
)

// OrderEvent is emitted by the order book simulator for every order
// outcome. Order carries the cumulative state (filled size, average
// price, constituent fills); NewFills holds only the fills produced by
// this event so consumers can apply them exactly once.
type OrderEvent struct {
	Type     OrderEventType
	Order    Order
	NewFills []Fill
}
