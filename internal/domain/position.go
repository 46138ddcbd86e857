package domain

import "time"

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is an open holding in one outcome token. Size is strictly
// positive while the position is open; the instant it reaches zero the
// position is removed from the open set and becomes a TradeRecord.
type Position struct {
	Key         MarketKey
	Side        PositionSide
	Size        float64
	EntryPrice  float64 // size-weighted average of entries
	MarkPrice   float64
	RealizedPnl float64 // accumulated on partial closes
	OpenedAt    time.Time
	OrderIDs    []string
}

// UnrealizedPnl returns the mark-to-market P&L of the open size.
func (p Position) UnrealizedPnl() float64 {
	if p.Side == PositionShort {
		return (p.EntryPrice - p.MarkPrice) * p.Size
	}
	return (p.MarkPrice - p.EntryPrice) * p.Size
}

// MarketValue returns the signed mark value the position contributes to
// total portfolio value: positive for longs, negative for the short
// buy-back liability (the short's premium already sits in cash).
func (p Position) MarketValue() float64 {
	if p.Side == PositionShort {
		return -p.MarkPrice * p.Size
	}
	return p.MarkPrice * p.Size
}

// TradeRecord is the immutable ledger entry written when a position
// fully closes. Fees stays 0 on purpose: every fill's fee is deducted
// from cash and tracked in the portfolio's running fee total, never
// attributed back to individual trades.
type TradeRecord struct {
	Key            MarketKey
	Side           PositionSide
	Size           float64 // open size just before the closing fill
	EntryPrice     float64
	ExitPrice      float64
	Pnl            float64 // total realized over the position's life
	PnlPct         float64
	PnlPctValid    bool // false when EntryPrice is 0 and the percent is undefined
	Fees           float64
	EntryTime      time.Time
	ExitTime       time.Time
	HoldingTime    time.Duration
	MarketResolved bool
	OrderIDs       []string
}

// PortfolioSnapshot is one equity-curve point. Immutable once appended.
type PortfolioSnapshot struct {
	Timestamp      time.Time
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	UnrealizedPnl  float64
	RealizedPnl    float64
	Drawdown       float64 // fraction of high-water mark given back
	HighWaterMark  float64
}
