// Package book synthesizes a depth-limited order book per outcome token
// from single price ticks and matches submitted orders against it.
package book

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/dmarzal/predictlab/internal/engine/slippage"
)

const (
	// Synthetic prices stay strictly inside the (0,1) outcome range.
	minPrice = 0.001
	maxPrice = 0.999

	// Volume multiplier bounds: low volume at most doubles the spread,
	// high volume at most halves it.
	minVolumeMult = 0.5
	maxVolumeMult = 2.0

	// Fraction of 24h volume placed at the top synthetic level.
	levelVolumeFraction = 0.01
	// Top-level size used when no volume estimate exists yet.
	defaultLevelBase = 100.0

	// Cosmetic only: per-level "order count" range.
	maxOrdersPerLevel = 5

	fillEpsilon = 1e-9
)

// Config controls book synthesis and matching.
type Config struct {
	DepthLevels        int
	BaseSpreadPct      float64 // percent, e.g. 2 = 2% spread at neutral volume
	SizeDecay          float64 // per-level size retain factor in (0,1]
	MinLevelSize       float64
	VolumeSpreadImpact float64 // reference 24h volume where the multiplier is 1
	FeeRate            float64 // flat fee fraction charged on each fill's notional
	Seed               int64   // seeds the cosmetic order-count randomness
}

func (c *Config) setDefaults() {
	if c.DepthLevels <= 0 {
		c.DepthLevels = 5
	}
	if c.BaseSpreadPct <= 0 {
		c.BaseSpreadPct = 2
	}
	if c.SizeDecay <= 0 || c.SizeDecay > 1 {
		c.SizeDecay = 0.8
	}
	if c.MinLevelSize <= 0 {
		c.MinLevelSize = 10
	}
	if c.VolumeSpreadImpact <= 0 {
		c.VolumeSpreadImpact = 10000
	}
}

// Simulator owns one synthetic book per (market, outcome) key plus the
// queue of resting limit orders. It is single-threaded by contract: the
// driver sequences all calls.
type Simulator struct {
	cfg     Config
	slip    *slippage.Calculator
	books   map[domain.MarketKey]*domain.SimulatedOrderBook
	pending map[domain.MarketKey][]*domain.Order
	rng     *rand.Rand
}

// New creates a Simulator matching through the given cost model.
func New(cfg Config, slip *slippage.Calculator) *Simulator {
	cfg.setDefaults()
	return &Simulator{
		cfg:     cfg,
		slip:    slip,
		books:   make(map[domain.MarketKey]*domain.SimulatedOrderBook),
		pending: make(map[domain.MarketKey][]*domain.Order),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// HandlePriceUpdate rebuilds the key's synthetic book around the tick
// and re-evaluates every queued limit order for that key. It returns
// the order events produced by those re-evaluations.
func (s *Simulator) HandlePriceUpdate(tick domain.PriceUpdate) []domain.OrderEvent {
	if tick.Price <= 0 {
		return nil
	}
	b, ok := s.books[tick.Key]
	if !ok {
		b = &domain.SimulatedOrderBook{Key: tick.Key}
		s.books[tick.Key] = b
	}
	if tick.Volume24h > 0 {
		b.Volume24h = tick.Volume24h
	}
	b.LastPrice = tick.Price
	b.UpdatedAt = tick.Timestamp
	s.rebuild(b, tick)

	return s.evalPending(tick.Key, tick.Timestamp)
}

// rebuild synthesizes both sides of the book from a single tick. Low
// volume widens the spread and shrinks level sizes; high volume does
// the opposite.
func (s *Simulator) rebuild(b *domain.SimulatedOrderBook, tick domain.PriceUpdate) {
	volMult := clamp(s.cfg.VolumeSpreadImpact/math.Max(1, b.Volume24h), minVolumeMult, maxVolumeMult)
	spreadFrac := s.cfg.BaseSpreadPct / 100 * volMult

	bestBid := tick.Bid
	if bestBid <= 0 {
		bestBid = tick.Price * (1 - spreadFrac/2)
	}
	bestAsk := tick.Ask
	if bestAsk <= 0 {
		bestAsk = tick.Price * (1 + spreadFrac/2)
	}

	base := b.Volume24h * levelVolumeFraction
	if base <= 0 {
		base = defaultLevelBase
	}
	base /= volMult

	step := spreadFrac / float64(s.cfg.DepthLevels)
	b.Bids = b.Bids[:0]
	b.Asks = b.Asks[:0]
	for i := 0; i < s.cfg.DepthLevels; i++ {
		size := math.Max(s.cfg.MinLevelSize, base*math.Pow(s.cfg.SizeDecay, float64(i)))
		b.Bids = append(b.Bids, domain.OrderLevel{
			Price:  clamp(bestBid*(1-float64(i)*step), minPrice, maxPrice),
			Size:   size,
			Orders: 1 + s.rng.Intn(maxOrdersPerLevel),
		})
		b.Asks = append(b.Asks, domain.OrderLevel{
			Price:  clamp(bestAsk*(1+float64(i)*step), minPrice, maxPrice),
			Size:   size,
			Orders: 1 + s.rng.Intn(maxOrdersPerLevel),
		})
	}
}

// RecordTrade refreshes the rolling volume estimate and last price.
// Observed venue trades never match against the synthetic book.
func (s *Simulator) RecordTrade(t domain.MarketTrade) {
	b, ok := s.books[t.Key]
	if !ok {
		return
	}
	b.Volume24h += t.Price * t.Size
	if t.Price > 0 {
		b.LastPrice = t.Price
	}
}

// SubmitOrder matches a strategy order against the key's synthetic
// book. It returns nil when no book exists for the key yet: a no-op,
// not an order outcome, and the caller must not treat it as one.
func (s *Simulator) SubmitOrder(o domain.Order) *domain.OrderEvent {
	b, ok := s.books[o.Key]
	if !ok {
		slog.Debug("book: no book for key, order ignored", "key", o.Key.String(), "order", o.ID)
		return nil
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}

	switch o.Type {
	case domain.OrderTypeLimit:
		return s.submitLimit(b, &o)
	default:
		return s.submitMarket(b, &o)
	}
}

func (s *Simulator) submitMarket(b *domain.SimulatedOrderBook, o *domain.Order) *domain.OrderEvent {
	if len(s.opposite(b, o.Side)) == 0 {
		return cancel(o)
	}
	fills := s.fill(b, o)
	if len(fills) == 0 {
		return cancel(o)
	}
	// market orders never rest: whatever could not fill is abandoned
	ev := &domain.OrderEvent{Type: domain.OrderEventFilled, Order: *o, NewFills: fills}
	return ev
}

func (s *Simulator) submitLimit(b *domain.SimulatedOrderBook, o *domain.Order) *domain.OrderEvent {
	if o.LimitPrice <= 0 {
		return cancel(o)
	}
	if !marketable(b, o) {
		o.Status = domain.OrderStatusOpen
		s.pending[o.Key] = append(s.pending[o.Key], o)
		return &domain.OrderEvent{Type: domain.OrderEventPlaced, Order: *o}
	}

	fills := s.fill(b, o)
	if len(fills) == 0 {
		return cancel(o)
	}
	if o.Remaining() > fillEpsilon {
		// queue the unfilled remainder under a derived id
		rem := domain.Order{
			ID:         fmt.Sprintf("%s-r1", o.ID),
			Key:        o.Key,
			Side:       o.Side,
			Type:       domain.OrderTypeLimit,
			Size:       o.Remaining(),
			LimitPrice: o.LimitPrice,
			Status:     domain.OrderStatusOpen,
			CreatedAt:  o.CreatedAt,
		}
		s.pending[o.Key] = append(s.pending[o.Key], &rem)
	}
	return &domain.OrderEvent{Type: domain.OrderEventFilled, Order: *o, NewFills: fills}
}

// evalPending re-checks every queued limit order for the key against
// the freshly rebuilt book.
func (s *Simulator) evalPending(key domain.MarketKey, ts time.Time) []domain.OrderEvent {
	queue := s.pending[key]
	if len(queue) == 0 {
		return nil
	}
	b := s.books[key]

	var events []domain.OrderEvent
	var still []*domain.Order
	for _, o := range queue {
		if !marketable(b, o) {
			still = append(still, o)
			continue
		}
		fills := s.fillAt(b, o, ts)
		if len(fills) == 0 {
			still = append(still, o)
			continue
		}
		events = append(events, domain.OrderEvent{Type: domain.OrderEventFilled, Order: *o, NewFills: fills})
		if o.Status != domain.OrderStatusFilled {
			still = append(still, o)
		}
	}
	if len(still) == 0 {
		delete(s.pending, key)
	} else {
		s.pending[key] = still
	}
	return events
}

// fill executes the shared walk stamped with the book's update time.
func (s *Simulator) fill(b *domain.SimulatedOrderBook, o *domain.Order) []domain.Fill {
	return s.fillAt(b, o, b.UpdatedAt)
}

// fillAt walks opposite-side levels best-to-worst, taking
// min(remaining, levelSize) at each level's price until the order is
// done or levels are exhausted. The cost model caps the fillable size;
// each accepted fill is charged the flat fee rate on its notional.
// Consumed liquidity is removed from the book until the next rebuild.
func (s *Simulator) fillAt(b *domain.SimulatedOrderBook, o *domain.Order, ts time.Time) []domain.Fill {
	levels := s.opposite(b, o.Side)
	if len(levels) == 0 {
		return nil
	}

	est := s.slip.Estimate(o.Side, o.Remaining(), levels, b.Volume24h)
	budget := o.Remaining()
	if !est.CanFill && est.MaxFillableSize < budget {
		budget = est.MaxFillableSize
	}

	var fills []domain.Fill
	for i := range levels {
		if budget <= fillEpsilon {
			break
		}
		lvl := &levels[i]
		if lvl.Size <= fillEpsilon {
			continue
		}
		if o.Type == domain.OrderTypeLimit && violatesLimit(o, lvl.Price) {
			break
		}
		take := math.Min(budget, lvl.Size)
		fill := domain.Fill{
			Price:     lvl.Price,
			Size:      take,
			Fee:       take * lvl.Price * s.cfg.FeeRate,
			Timestamp: ts,
		}
		fills = append(fills, fill)
		o.Fills = append(o.Fills, fill)
		o.FilledSize += take
		lvl.Size -= take
		budget -= take
	}
	if len(fills) == 0 {
		return nil
	}

	var notional float64
	for _, f := range o.Fills {
		notional += f.Notional()
	}
	o.AvgFillPrice = notional / o.FilledSize

	if o.Remaining() <= fillEpsilon {
		o.Status = domain.OrderStatusFilled
	} else {
		o.Status = domain.OrderStatusPartiallyFilled
	}
	s.compact(b, o.Side)
	return fills
}

// CloseMarket drops the key's book and cancels its queued orders,
// returning the cancellation events. Called on market resolution.
func (s *Simulator) CloseMarket(key domain.MarketKey) []domain.OrderEvent {
	var events []domain.OrderEvent
	for _, o := range s.pending[key] {
		o.Status = domain.OrderStatusCancelled
		events = append(events, domain.OrderEvent{Type: domain.OrderEventCancelled, Order: *o})
	}
	delete(s.pending, key)
	delete(s.books, key)
	return events
}

// Book returns a copy of the key's current book. The level slices are
// copied too: later ticks rebuild the internal arrays in place, so a
// shallow copy would alias state the caller expects to stay frozen.
func (s *Simulator) Book(key domain.MarketKey) (domain.SimulatedOrderBook, bool) {
	b, ok := s.books[key]
	if !ok {
		return domain.SimulatedOrderBook{}, false
	}
	out := *b
	out.Bids = append([]domain.OrderLevel(nil), b.Bids...)
	out.Asks = append([]domain.OrderLevel(nil), b.Asks...)
	return out, true
}

// BestBid returns the key's top bid, or ok=false when the book or its
// bid side is empty.
func (s *Simulator) BestBid(key domain.MarketKey) (float64, bool) {
	b, ok := s.books[key]
	if !ok || len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the key's top ask, or ok=false when the book or its
// ask side is empty.
func (s *Simulator) BestAsk(key domain.MarketKey) (float64, bool) {
	b, ok := s.books[key]
	if !ok || len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// PendingOrders returns the number of resting limit orders across keys.
func (s *Simulator) PendingOrders() int {
	total := 0
	for _, q := range s.pending {
		total += len(q)
	}
	return total
}

// Reset clears all books and the pending-order queue. The cosmetic
// randomness is reseeded so identical event streams replay identically.
func (s *Simulator) Reset() {
	s.books = make(map[domain.MarketKey]*domain.SimulatedOrderBook)
	s.pending = make(map[domain.MarketKey][]*domain.Order)
	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
}

func (s *Simulator) opposite(b *domain.SimulatedOrderBook, side domain.Side) []domain.OrderLevel {
	if side == domain.SideBuy {
		return b.Asks
	}
	return b.Bids
}

// compact drops exhausted levels from the matched side.
func (s *Simulator) compact(b *domain.SimulatedOrderBook, side domain.Side) {
	src := s.opposite(b, side)
	kept := src[:0]
	for _, l := range src {
		if l.Size > fillEpsilon {
			kept = append(kept, l)
		}
	}
	if side == domain.SideBuy {
		b.Asks = kept
	} else {
		b.Bids = kept
	}
}

// marketable reports whether the top of the opposite side already
// satisfies the limit price.
func marketable(b *domain.SimulatedOrderBook, o *domain.Order) bool {
	if o.Side == domain.SideBuy {
		return len(b.Asks) > 0 && b.Asks[0].Price <= o.LimitPrice
	}
	return len(b.Bids) > 0 && b.Bids[0].Price >= o.LimitPrice
}

func violatesLimit(o *domain.Order, price float64) bool {
	if o.Side == domain.SideBuy {
		return price > o.LimitPrice
	}
	return price < o.LimitPrice
}

func cancel(o *domain.Order) *domain.OrderEvent {
	o.Status = domain.OrderStatusCancelled
	return &domain.OrderEvent{Type: domain.OrderEventCancelled, Order: *o}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
