// Package strategy holds the built-in trading strategies. They exist so
// a replay run can exercise the full order path without an external
// signal source; the engine treats them as opaque ports.Strategy values.
package strategy

import (
	"fmt"

	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/dmarzal/predictlab/internal/ports"
)

// ThresholdConfig tunes the mean-reversion threshold strategy.
type ThresholdConfig struct {
	// BuyBelow opens a LONG when the price trades at or under this level.
	BuyBelow float64
	// SellAbove closes the position when the price trades at or over it.
	SellAbove float64
	// Size is the share count per entry order.
	Size float64
	// MaxPositions caps the number of simultaneously open markets.
	MaxPositions int
}

// Threshold buys outcomes it considers cheap and exits when they
// recover. It is deliberately naive: its job is to generate realistic
// order flow, not alpha.
type Threshold struct {
	cfg ThresholdConfig
	seq int
}

func NewThreshold(cfg ThresholdConfig) *Threshold {
	if cfg.BuyBelow <= 0 {
		cfg.BuyBelow = 0.35
	}
	if cfg.SellAbove <= 0 {
		cfg.SellAbove = 0.65
	}
	if cfg.Size <= 0 {
		cfg.Size = 10
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = 5
	}
	return &Threshold{cfg: cfg}
}

// OnPrice implements ports.Strategy.
func (t *Threshold) OnPrice(tick domain.PriceUpdate, pf ports.PortfolioView) []domain.Order {
	pos, held := pf.Position(tick.Key)

	switch {
	case held && pos.Side == domain.PositionLong && tick.Price >= t.cfg.SellAbove:
		return []domain.Order{t.order(tick, domain.SideSell, pos.Size)}

	case !held && tick.Price <= t.cfg.BuyBelow:
		if pf.OpenPositions() >= t.cfg.MaxPositions {
			return nil
		}
		if pf.Cash() < t.cfg.Size*tick.Price {
			return nil
		}
		return []domain.Order{t.order(tick, domain.SideBuy, t.cfg.Size)}
	}
	return nil
}

// OnOrderEvent implements ports.Strategy. Threshold keeps no per-order
// state; fills are reflected through the portfolio view.
func (t *Threshold) OnOrderEvent(domain.OrderEvent) {}

func (t *Threshold) order(tick domain.PriceUpdate, side domain.Side, size float64) domain.Order {
	t.seq++
	return domain.Order{
		ID:        fmt.Sprintf("thr-%s-%d", side, t.seq),
		Key:       tick.Key,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Size:      size,
		CreatedAt: tick.Timestamp,
	}
}

var _ ports.Strategy = (*Threshold)(nil)
