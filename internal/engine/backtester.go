// Package engine sequences recorded market events through the
// simulation core: order book synthesis, matching, and portfolio
// bookkeeping.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/dmarzal/predictlab/internal/engine/book"
	"github.com/dmarzal/predictlab/internal/engine/portfolio"
	"github.com/dmarzal/predictlab/internal/ports"
)

// Backtester drives one deterministic simulation run. Events are
// processed strictly one at a time in feed order; identical streams
// and configuration reproduce identical ledgers and equity curves.
type Backtester struct {
	books     *book.Simulator
	portfolio *portfolio.Manager
	strategy  ports.Strategy

	events int
	orders int
}

// New wires a Backtester from its two core components and an optional
// strategy. A nil strategy replays events without ever trading.
func New(books *book.Simulator, pf *portfolio.Manager, strategy ports.Strategy) *Backtester {
	return &Backtester{books: books, portfolio: pf, strategy: strategy}
}

// Run consumes the feed to exhaustion and returns the run result.
func (b *Backtester) Run(ctx context.Context, feed ports.EventFeed) (*domain.RunResult, error) {
	started := time.Now().UTC()
	initial := b.portfolio.Cash()
	var lastEvent time.Time

	for {
		ev, err := feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("engine.Run: feed: %w", err)
		}
		b.events++
		lastEvent = ev.When()

		switch e := ev.(type) {
		case domain.PriceUpdate:
			b.handleTick(e)
		case domain.MarketTrade:
			b.books.RecordTrade(e)
		case domain.MarketResolved:
			b.handleResolution(e)
		default:
			slog.Warn("engine: unknown event type skipped", "event", fmt.Sprintf("%T", ev))
		}
	}

	// capture the final equity point even when the interval gate would
	// have skipped it
	final := b.portfolio.Snapshot(lastEvent)
	curve := b.portfolio.EquityCurve()
	if n := len(curve); n == 0 || !curve[n-1].Timestamp.Equal(final.Timestamp) {
		curve = append(curve, final)
	}

	result := &domain.RunResult{
		RunID:          uuid.New().String(),
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		InitialCapital: initial,
		FinalValue:     final.TotalValue,
		TotalFees:      b.portfolio.TotalFees(),
		RealizedPnl:    b.portfolio.RealizedPnl(),
		EventsSeen:     b.events,
		OrdersPlaced:   b.orders,
		Trades:         b.portfolio.Ledger(),
		EquityCurve:    curve,
	}
	if initial > 0 {
		result.ReturnPct = (final.TotalValue - initial) / initial * 100
	}
	for _, snap := range curve {
		if snap.Drawdown > result.MaxDrawdown {
			result.MaxDrawdown = snap.Drawdown
		}
	}

	slog.Info("engine: run finished",
		"run", result.RunID,
		"events", b.events,
		"orders", b.orders,
		"trades", len(result.Trades),
		"final", fmt.Sprintf("$%.2f", result.FinalValue),
		"return", fmt.Sprintf("%.2f%%", result.ReturnPct),
	)
	return result, nil
}

// handleTick rebuilds the book, settles any queued limit orders that
// became marketable, lets the strategy react, and gates an equity
// snapshot.
func (b *Backtester) handleTick(tick domain.PriceUpdate) {
	for _, ev := range b.books.HandlePriceUpdate(tick) {
		b.applyOrderEvent(ev)
	}
	b.portfolio.MarkPrice(tick.Key, tick.Price)

	if b.strategy != nil {
		for _, order := range b.strategy.OnPrice(tick, b.portfolio) {
			b.submit(order)
		}
	}
	b.portfolio.MaybeSnapshot(tick.Timestamp)
}

func (b *Backtester) handleResolution(e domain.MarketResolved) {
	for _, ev := range b.books.CloseMarket(e.Key) {
		b.applyOrderEvent(ev)
	}
	b.portfolio.Resolve(e.Key, e.ResolutionPrice, e.Timestamp)
}

// submit forwards one strategy order to the book simulator. A nil
// event means no book exists for the key yet; that is a no-op, not an
// order outcome.
func (b *Backtester) submit(order domain.Order) {
	b.orders++
	ev := b.books.SubmitOrder(order)
	if ev == nil {
		return
	}
	b.applyOrderEvent(*ev)
}

// applyOrderEvent routes each new fill to the portfolio exactly once
// and echoes the event to the strategy.
func (b *Backtester) applyOrderEvent(ev domain.OrderEvent) {
	for _, f := range ev.NewFills {
		b.portfolio.ApplyFill(ev.Order.Key, ev.Order.Side, f, ev.Order.ID)
	}
	if b.strategy != nil {
		b.strategy.OnOrderEvent(ev)
	}
}
