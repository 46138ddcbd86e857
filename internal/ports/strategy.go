package ports

import "github.com/dmarzal/predictlab/internal/domain"

// PortfolioView is the read-only portfolio state a strategy may consult.
type PortfolioView interface {
	Cash() float64
	Position(key domain.MarketKey) (domain.Position, bool)
	OpenPositions() int
}

// Strategy is the external signal layer. The engine only forwards its
// orders; the algorithms behind it are not the engine's concern.
type Strategy interface {
	// OnPrice is called after the book for the tick's key has been
	// rebuilt. Returned orders are submitted in order.
	OnPrice(tick domain.PriceUpdate, pf PortfolioView) []domain.Order

	// OnOrderEvent observes every order outcome, including fills of
	// queued limit orders triggered by later ticks.
	OnOrderEvent(ev domain.OrderEvent)
}
