package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmarzal/predictlab/internal/adapters/feed"
	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/dmarzal/predictlab/internal/engine"
	"github.com/dmarzal/predictlab/internal/engine/book"
	"github.com/dmarzal/predictlab/internal/engine/portfolio"
	"github.com/dmarzal/predictlab/internal/engine/slippage"
	"github.com/dmarzal/predictlab/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = domain.MarketKey{Market: "0xabc", Outcome: "YES"}

// buyOnce buys a fixed size on the first tick it sees and then holds.
type buyOnce struct {
	size   float64
	bought bool
	events []domain.OrderEvent
}

func (s *buyOnce) OnPrice(tick domain.PriceUpdate, _ ports.PortfolioView) []domain.Order {
	if s.bought {
		return nil
	}
	s.bought = true
	return []domain.Order{{
		ID: fmt.Sprintf("%s-1", tick.Key.Outcome), Key: tick.Key,
		Side: domain.SideBuy, Type: domain.OrderTypeMarket,
		Size: s.size, CreatedAt: tick.Timestamp,
	}}
}

func (s *buyOnce) OnOrderEvent(ev domain.OrderEvent) {
	s.events = append(s.events, ev)
}

func newRig(strategy ports.Strategy) (*engine.Backtester, *portfolio.Manager) {
	slip := slippage.New(slippage.Config{Model: slippage.ModelOrderbook})
	books := book.New(book.Config{DepthLevels: 5, BaseSpreadPct: 2, Seed: 1}, slip)
	pf := portfolio.New(portfolio.Config{InitialCapital: 1000, SnapshotInterval: 30 * time.Minute})
	return engine.New(books, pf, strategy), pf
}

func streamEvents() []domain.Event {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Event{
		domain.PriceUpdate{Key: key, Price: 0.40, Volume24h: 10000, Timestamp: base},
		domain.MarketTrade{Key: key, Side: domain.SideBuy, Price: 0.42, Size: 50, Timestamp: base.Add(5 * time.Minute)},
		domain.PriceUpdate{Key: key, Price: 0.45, Volume24h: 10000, Timestamp: base.Add(10 * time.Minute)},
		domain.PriceUpdate{Key: key, Price: 0.55, Volume24h: 10000, Timestamp: base.Add(40 * time.Minute)},
		domain.MarketResolved{Key: key, ResolutionPrice: 1.0, Timestamp: base.Add(60 * time.Minute)},
	}
}

func TestRun_EndToEndResolution(t *testing.T) {
	strat := &buyOnce{size: 10}
	bt, pf := newRig(strat)

	result, err := bt.Run(context.Background(), feed.FromSlice(streamEvents()))
	require.NoError(t, err)

	assert.Equal(t, 5, result.EventsSeen)
	assert.Equal(t, 1, result.OrdersPlaced)
	require.Len(t, result.Trades, 1)

	rec := result.Trades[0]
	assert.True(t, rec.MarketResolved)
	assert.InDelta(t, 1.0, rec.ExitPrice, 1e-9)
	assert.InDelta(t, (1.0-rec.EntryPrice)*10, rec.Pnl, 1e-9)

	assert.Equal(t, 0, pf.OpenPositions())
	assert.InDelta(t, result.InitialCapital+rec.Pnl-result.TotalFees, result.FinalValue, 1e-9)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.EquityCurve)

	// strategy observed its own fill
	require.NotEmpty(t, strat.events)
	assert.Equal(t, domain.OrderEventFilled, strat.events[0].Type)
}

func TestRun_NilStrategyJustReplays(t *testing.T) {
	bt, pf := newRig(nil)

	result, err := bt.Run(context.Background(), feed.FromSlice(streamEvents()))
	require.NoError(t, err)

	assert.Equal(t, 0, result.OrdersPlaced)
	assert.Empty(t, result.Trades)
	assert.InDelta(t, 1000.0, result.FinalValue, 1e-9)
	assert.Equal(t, 0, pf.OpenPositions())
}

func TestRun_DeterministicLedgerAndCurve(t *testing.T) {
	run := func() *domain.RunResult {
		bt, _ := newRig(&buyOnce{size: 25})
		result, err := bt.Run(context.Background(), feed.FromSlice(streamEvents()))
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	assert.Equal(t, a.Trades, b.Trades, "identical streams reproduce identical ledgers")
	assert.Equal(t, a.EquityCurve, b.EquityCurve, "identical streams reproduce identical curves")
	assert.Equal(t, a.TotalFees, b.TotalFees)
	assert.NotEqual(t, a.RunID, b.RunID, "run ids are fresh per run")
}

func TestRun_SnapshotCadenceFollowsInterval(t *testing.T) {
	bt, _ := newRig(nil)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var events []domain.Event
	for i := 0; i < 6; i++ { // ticks every 10 minutes, snapshots every 30
		events = append(events, domain.PriceUpdate{
			Key: key, Price: 0.50, Volume24h: 5000,
			Timestamp: base.Add(time.Duration(i*10) * time.Minute),
		})
	}

	result, err := bt.Run(context.Background(), feed.FromSlice(events))
	require.NoError(t, err)

	// snapshots at 0, 30, 50min (final point forced at the last event)
	require.Len(t, result.EquityCurve, 3)
	for i := 1; i < len(result.EquityCurve); i++ {
		assert.True(t, result.EquityCurve[i].Timestamp.After(result.EquityCurve[i-1].Timestamp))
	}
}
