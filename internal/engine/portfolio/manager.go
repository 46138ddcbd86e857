// Package portfolio is the single source of truth for cash, open
// positions, the trade ledger, and the equity curve. It reacts only to
// fill and resolution events; no other code path mutates cash.
package portfolio

import (
	"log/slog"
	"math"
	"time"

	"github.com/dmarzal/predictlab/internal/domain"
)

const sizeEpsilon = 1e-9

// Config holds portfolio bookkeeping settings.
type Config struct {
	InitialCapital   float64
	SnapshotInterval time.Duration // minimum spacing between equity-curve points
}

// Manager tracks one simulated portfolio. Single-threaded by contract:
// the driver sequences all calls.
type Manager struct {
	cfg          Config
	cash         float64
	positions    map[domain.MarketKey]*domain.Position
	ledger       []domain.TradeRecord
	equity       []domain.PortfolioSnapshot
	highWater    float64
	totalFees    float64
	realized     float64
	lastSnapshot time.Time
}

// New creates a Manager with the configured starting capital.
func New(cfg Config) *Manager {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 1000
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 60 * time.Minute
	}
	m := &Manager{cfg: cfg}
	m.Reset(cfg.InitialCapital)
	return m
}

// Reset reinitializes all state for an independent run.
func (m *Manager) Reset(initialCapital float64) {
	m.cash = initialCapital
	m.positions = make(map[domain.MarketKey]*domain.Position)
	m.ledger = nil
	m.equity = nil
	m.highWater = 0
	m.totalFees = 0
	m.realized = 0
	m.lastSnapshot = time.Time{}
}

// ApplyFill runs the per-key position state machine for one fill.
// The fill's fee is deducted from cash immediately and accumulated in
// the running total; it is never attributed to a TradeRecord.
func (m *Manager) ApplyFill(key domain.MarketKey, side domain.Side, fill domain.Fill, orderID string) {
	m.cash -= fill.Fee
	m.totalFees += fill.Fee

	pos, ok := m.positions[key]
	if !ok {
		m.open(key, side, fill, orderID)
		return
	}

	sameDirection := (pos.Side == domain.PositionLong && side == domain.SideBuy) ||
		(pos.Side == domain.PositionShort && side == domain.SideSell)
	if sameDirection {
		m.increase(pos, fill, orderID)
		return
	}
	m.reduce(key, pos, fill, orderID, false)
}

// open starts a position: BUY opens a LONG (cash pays the notional),
// SELL opens a SHORT (the notional is received as premium against the
// buy-back liability).
func (m *Manager) open(key domain.MarketKey, side domain.Side, fill domain.Fill, orderID string) {
	posSide := domain.PositionLong
	if side == domain.SideSell {
		posSide = domain.PositionShort
		m.cash += fill.Notional()
	} else {
		m.cash -= fill.Notional()
	}
	m.positions[key] = &domain.Position{
		Key:        key,
		Side:       posSide,
		Size:       fill.Size,
		EntryPrice: fill.Price,
		MarkPrice:  fill.Price,
		OpenedAt:   fill.Timestamp,
		OrderIDs:   []string{orderID},
	}
}

// increase averages a same-direction fill into the entry price.
func (m *Manager) increase(pos *domain.Position, fill domain.Fill, orderID string) {
	if pos.Side == domain.PositionLong {
		m.cash -= fill.Notional()
	} else {
		m.cash += fill.Notional()
	}
	pos.EntryPrice = (pos.Size*pos.EntryPrice + fill.Size*fill.Price) / (pos.Size + fill.Size)
	pos.Size += fill.Size
	pos.MarkPrice = fill.Price
	pos.OrderIDs = append(pos.OrderIDs, orderID)
}

// reduce closes part or all of a position with an opposite-direction
// fill. Closing more than the open size closes exactly the open size;
// the excess is dropped, never flipped into a new position.
func (m *Manager) reduce(key domain.MarketKey, pos *domain.Position, fill domain.Fill, orderID string, resolved bool) {
	closeSize := math.Min(fill.Size, pos.Size)
	if fill.Size > pos.Size+sizeEpsilon {
		slog.Debug("portfolio: close size exceeds position, excess dropped",
			"key", key.String(), "position", pos.Size, "fill", fill.Size)
	}

	var pnl float64
	if pos.Side == domain.PositionLong {
		pnl = (fill.Price - pos.EntryPrice) * closeSize
		m.cash += closeSize * fill.Price
	} else {
		pnl = (pos.EntryPrice - fill.Price) * closeSize
		m.cash -= closeSize * fill.Price
	}
	preCloseSize := pos.Size
	pos.RealizedPnl += pnl
	m.realized += pnl
	pos.Size -= closeSize
	pos.MarkPrice = fill.Price
	if orderID != "" {
		pos.OrderIDs = append(pos.OrderIDs, orderID)
	}

	if pos.Size > sizeEpsilon {
		return // partial close, position stays open
	}
	delete(m.positions, key)
	m.ledger = append(m.ledger, closeRecord(pos, preCloseSize, fill, resolved))
}

// closeRecord converts a fully closed position into its ledger entry.
// Pnl carries the position's whole realized life, partial closes
// included, so the ledger sum always equals total realized P&L.
func closeRecord(pos *domain.Position, preCloseSize float64, fill domain.Fill, resolved bool) domain.TradeRecord {
	rec := domain.TradeRecord{
		Key:            pos.Key,
		Side:           pos.Side,
		Size:           preCloseSize,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      fill.Price,
		Pnl:            pos.RealizedPnl,
		EntryTime:      pos.OpenedAt,
		ExitTime:       fill.Timestamp,
		HoldingTime:    fill.Timestamp.Sub(pos.OpenedAt),
		MarketResolved: resolved,
		OrderIDs:       pos.OrderIDs,
	}
	if basis := preCloseSize * pos.EntryPrice; basis > 0 {
		rec.PnlPct = rec.Pnl / basis * 100
		rec.PnlPctValid = true
	}
	return rec
}

// Resolve force-closes the key's position at the resolution price, not
// the last traded price. No-op when no position is open for the key.
func (m *Manager) Resolve(key domain.MarketKey, resolutionPrice float64, ts time.Time) {
	pos, ok := m.positions[key]
	if !ok {
		return
	}
	settle := domain.Fill{Price: resolutionPrice, Size: pos.Size, Timestamp: ts}
	m.reduce(key, pos, settle, "", true)
}

// MarkPrice refreshes the key's mark price for unrealized P&L.
func (m *Manager) MarkPrice(key domain.MarketKey, price float64) {
	if pos, ok := m.positions[key]; ok {
		pos.MarkPrice = price
	}
}

// Snapshot captures point-in-time portfolio state and advances the
// high-water mark.
func (m *Manager) Snapshot(ts time.Time) domain.PortfolioSnapshot {
	var posValue, unrealized float64
	for _, pos := range m.positions {
		posValue += pos.MarketValue()
		unrealized += pos.UnrealizedPnl()
	}
	total := m.cash + posValue
	if total > m.highWater {
		m.highWater = total
	}
	drawdown := 0.0
	if m.highWater > 0 {
		drawdown = (m.highWater - total) / m.highWater
	}
	return domain.PortfolioSnapshot{
		Timestamp:      ts,
		Cash:           m.cash,
		PositionsValue: posValue,
		TotalValue:     total,
		UnrealizedPnl:  unrealized,
		RealizedPnl:    m.realized,
		Drawdown:       drawdown,
		HighWaterMark:  m.highWater,
	}
}

// MaybeSnapshot appends an equity-curve point when at least the
// configured interval elapsed since the last one. Returns nil when the
// attempt was skipped.
func (m *Manager) MaybeSnapshot(ts time.Time) *domain.PortfolioSnapshot {
	if !m.lastSnapshot.IsZero() && ts.Sub(m.lastSnapshot) < m.cfg.SnapshotInterval {
		return nil
	}
	snap := m.Snapshot(ts)
	m.equity = append(m.equity, snap)
	m.lastSnapshot = ts
	return &snap
}

// Cash returns the current cash balance.
func (m *Manager) Cash() float64 { return m.cash }

// TotalFees returns the running fee total across all fills.
func (m *Manager) TotalFees() float64 { return m.totalFees }

// RealizedPnl returns total realized P&L, partial closes included.
func (m *Manager) RealizedPnl() float64 { return m.realized }

// Position looks up the open position for a key.
func (m *Manager) Position(key domain.MarketKey) (domain.Position, bool) {
	pos, ok := m.positions[key]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns the number of open positions.
func (m *Manager) OpenPositions() int { return len(m.positions) }

// Ledger returns the append-only trade ledger.
func (m *Manager) Ledger() []domain.TradeRecord { return m.ledger }

// EquityCurve returns the equity-curve points captured so far.
func (m *Manager) EquityCurve() []domain.PortfolioSnapshot { return m.equity }
