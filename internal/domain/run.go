package domain

import "time"

// RunResult is everything one backtest run produced.
type RunResult struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	InitialCapital float64
	FinalValue     float64
	ReturnPct      float64
	MaxDrawdown    float64 // worst snapshot drawdown, fraction
	TotalFees      float64
	RealizedPnl    float64
	EventsSeen     int
	OrdersPlaced   int
	Trades         []TradeRecord
	EquityCurve    []PortfolioSnapshot
}

// WinRate returns the fraction of ledger trades with positive P&L,
// or 0 when the ledger is empty.
func (r RunResult) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range r.Trades {
		if t.Pnl > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(r.Trades))
}

// AvgTradePnl returns the mean P&L per ledger trade, or 0 when the
// ledger is empty.
func (r RunResult) AvgTradePnl() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	var total float64
	for _, t := range r.Trades {
		total += t.Pnl
	}
	return total / float64(len(r.Trades))
}

// RunSummary is the lightweight listing row for persisted runs.
type RunSummary struct {
	RunID          string
	StartedAt      time.Time
	InitialCapital float64
	FinalValue     float64
	ReturnPct      float64
	MaxDrawdown    float64
	TradeCount     int
}
