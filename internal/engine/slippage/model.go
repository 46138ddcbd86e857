// Package slippage estimates execution cost for an intended trade
// against the synthetic book, under one of three cost models.
//
// Numeric convention: every internal ratio is a fraction (0.001 = 0.1%).
// Only the exported ...Pct fields are ×100. Every denominator that can
// be zero is floored before division.
package slippage

import (
	"log/slog"
	"math"

	"github.com/dmarzal/predictlab/internal/domain"
)

// Model selects the execution-cost model.
type Model string

const (
	ModelFixed        Model = "fixed"
	ModelProportional Model = "proportional"
	ModelOrderbook    Model = "orderbook"
)

const (
	// proportional model: extra slippage per unit of notional/volume ratio.
	volumeImpactCoeff = 0.1

	// OptimalSize binary-search tolerance, in size units.
	sizeTolerance = 0.01

	fillEpsilon = 1e-9
)

// Config holds the model selector plus its model-specific parameters.
type Config struct {
	Model        Model
	FixedRate    float64 // fixed model: flat slippage fraction
	BaseRate     float64 // proportional model: base slippage fraction
	ImpactFactor float64 // orderbook model: 1 = pure book-walk cost, >1 adds linear impact
	ImpactLambda float64 // square-root impact law coefficient (advisory)
}

// Estimate is the cost model's verdict for one intended trade.
type Estimate struct {
	ExecutionPrice  float64
	SlippageAmount  float64 // cash given up vs the best price, over the fillable size
	SlippagePct     float64 // ×100
	MarketImpact    float64 // advisory square-root law estimate, fraction
	CanFill         bool
	MaxFillableSize float64
}

// Calculator computes execution-cost estimates under a configured model.
type Calculator struct {
	cfg Config
}

// New builds a Calculator. An unrecognized model name fails closed to
// the fixed model with a logged warning rather than aborting the run.
func New(cfg Config) *Calculator {
	switch cfg.Model {
	case ModelFixed, ModelProportional, ModelOrderbook:
	default:
		slog.Warn("slippage: unknown model, falling back to fixed", "model", string(cfg.Model))
		cfg.Model = ModelFixed
	}
	if cfg.ImpactFactor <= 0 {
		cfg.ImpactFactor = 1
	}
	if cfg.ImpactLambda <= 0 {
		cfg.ImpactLambda = 0.1
	}
	return &Calculator{cfg: cfg}
}

// ModelName returns the model actually in effect after validation.
func (c *Calculator) ModelName() Model {
	return c.cfg.Model
}

// Estimate computes the execution price and fillable size for an order
// of the given size and side against the opposite-side levels, sorted
// best-to-worst. dailyVolume is the book's rolling 24h volume estimate.
func (c *Calculator) Estimate(side domain.Side, size float64, levels []domain.OrderLevel, dailyVolume float64) Estimate {
	if len(levels) == 0 || size <= 0 {
		return noLiquidity()
	}
	best := levels[0].Price

	switch c.cfg.Model {
	case ModelProportional:
		notional := size * best
		frac := c.cfg.BaseRate + volumeImpactCoeff*notional/math.Max(1, dailyVolume)
		return c.estimateAt(side, size, size, best, frac, dailyVolume)

	case ModelOrderbook:
		filled, cost := walkLevels(size, levels)
		if filled <= fillEpsilon {
			return noLiquidity()
		}
		avg := cost / filled
		frac := math.Abs(avg-best) / best * c.cfg.ImpactFactor
		return c.estimateAt(side, size, filled, best, frac, dailyVolume)

	default: // fixed
		return c.estimateAt(side, size, size, best, c.cfg.FixedRate, dailyVolume)
	}
}

// estimateAt assembles an Estimate from a slippage fraction and the
// size the model considers fillable.
func (c *Calculator) estimateAt(side domain.Side, size, fillable, best, frac, dailyVolume float64) Estimate {
	exec := best * (1 + frac)
	if side == domain.SideSell {
		exec = best * (1 - frac)
	}
	return Estimate{
		ExecutionPrice:  exec,
		SlippageAmount:  math.Abs(exec-best) * fillable,
		SlippagePct:     frac * 100,
		MarketImpact:    c.EstimateMarketImpact(size*best, dailyVolume),
		CanFill:         fillable >= size-fillEpsilon,
		MaxFillableSize: fillable,
	}
}

// EstimateMarketImpact returns the square-root market-impact estimate
// λ·√(notional/volume). Advisory only; matching never uses it.
func (c *Calculator) EstimateMarketImpact(orderNotional, dailyVolume float64) float64 {
	if orderNotional <= 0 {
		return 0
	}
	return c.cfg.ImpactLambda * math.Sqrt(orderNotional/math.Max(1, dailyVolume))
}

// OptimalSize inverts the forward model: the largest order size whose
// slippage stays within maxSlippagePct (a ×100 percent, like the
// reported SlippagePct). Depth-blind models answer in closed form; the
// orderbook model walks levels and binary-searches inside the level
// where the cap is crossed.
func (c *Calculator) OptimalSize(side domain.Side, levels []domain.OrderLevel, dailyVolume, maxSlippagePct float64) float64 {
	if len(levels) == 0 || maxSlippagePct < 0 {
		return 0
	}
	maxFrac := maxSlippagePct / 100
	best := levels[0].Price

	switch c.cfg.Model {
	case ModelProportional:
		if c.cfg.BaseRate > maxFrac {
			return 0
		}
		// baseRate + coeff·size·best/volume ≤ maxFrac, solved for size.
		return (maxFrac - c.cfg.BaseRate) * math.Max(1, dailyVolume) / (volumeImpactCoeff * math.Max(best, 1e-9))

	case ModelOrderbook:
		return c.optimalBookSize(levels, maxFrac)

	default: // fixed
		if c.cfg.FixedRate > maxFrac {
			return 0
		}
		var depth float64
		for _, l := range levels {
			depth += l.Size
		}
		return depth
	}
}

// optimalBookSize finds the maximal size with book-walk slippage within
// maxFrac. Whole levels are accepted while they stay under the cap; the
// level that crosses it gets a bounded binary search.
func (c *Calculator) optimalBookSize(levels []domain.OrderLevel, maxFrac float64) float64 {
	slipFor := func(size float64) float64 {
		filled, cost := walkLevels(size, levels)
		if filled <= fillEpsilon {
			return 0
		}
		avg := cost / filled
		return math.Abs(avg-levels[0].Price) / levels[0].Price * c.cfg.ImpactFactor
	}

	var accepted float64
	for _, l := range levels {
		candidate := accepted + l.Size
		if slipFor(candidate) <= maxFrac {
			accepted = candidate
			continue
		}
		lo, hi := accepted, candidate
		for hi-lo > sizeTolerance {
			mid := (lo + hi) / 2
			if slipFor(mid) <= maxFrac {
				lo = mid
			} else {
				hi = mid
			}
		}
		return lo
	}
	return accepted
}

// walkLevels consumes levels best-to-worst and returns the filled size
// and the total notional cost of those fills.
func walkLevels(size float64, levels []domain.OrderLevel) (filled, cost float64) {
	remaining := size
	for _, l := range levels {
		if remaining <= fillEpsilon {
			break
		}
		take := math.Min(remaining, l.Size)
		if take <= 0 {
			continue
		}
		filled += take
		cost += take * l.Price
		remaining -= take
	}
	return filled, cost
}

// noLiquidity is the empty-book sentinel, identical for every model.
func noLiquidity() Estimate {
	return Estimate{SlippagePct: 100}
}
