package domain

import "time"

// OrderLevel is one synthetic depth rung of a simulated book.
// Orders is cosmetic metadata only; matching never reads it.
type OrderLevel struct {
	Price  float64
	Size   float64
	Orders int
}

// SimulatedOrderBook is the synthetic book for one (market, outcome) key.
// Bids are sorted descending by price, asks ascending, by construction.
type SimulatedOrderBook struct {
	Key       MarketKey
	Bids      []OrderLevel
	Asks      []OrderLevel
	LastPrice float64
	Volume24h float64 // rolling estimate
	UpdatedAt time.Time
}

// BestBid returns the top bid price, or 0 if that side is empty.
func (b SimulatedOrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 if that side is empty.
func (b SimulatedOrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Midpoint returns the mid between best bid and best ask, or 0 if either
// side is empty.
func (b SimulatedOrderBook) Midpoint() float64 {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// BidDepth returns the total size resting on the bid side.
func (b SimulatedOrderBook) BidDepth() float64 {
	var total float64
	for _, l := range b.Bids {
		total += l.Size
	}
	return total
}

// AskDepth returns the total size resting on the ask side.
func (b SimulatedOrderBook) AskDepth() float64 {
	var total float64
	for _, l := range b.Asks {
		total += l.Size
	}
	return total
}
