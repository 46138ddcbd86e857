package polymarket

import (
	"sort"

	"github.com/dmarzal/predictlab/internal/domain"
)

// BuildEvents merges collected price samples and venue trades for one
// outcome token into a timestamp-ordered event stream ready for replay.
func BuildEvents(key domain.MarketKey, points []PricePoint, trades []VenueTrade) []domain.Event {
	events := make([]domain.Event, 0, len(points)+len(trades))

	volume := rollingVolume(trades)
	for _, p := range points {
		events = append(events, domain.PriceUpdate{
			Key:       key,
			Price:     p.Price,
			Volume24h: volume,
			Timestamp: p.Timestamp,
		})
	}
	for _, t := range trades {
		side := domain.SideBuy
		if t.Side == "SELL" {
			side = domain.SideSell
		}
		events = append(events, domain.MarketTrade{
			Key:       key,
			Side:      side,
			Price:     t.Price,
			Size:      t.Size,
			Timestamp: t.Timestamp,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].When().Before(events[j].When())
	})
	return events
}

// rollingVolume estimates 24h notional volume from the trade sample.
func rollingVolume(trades []VenueTrade) float64 {
	var total float64
	for _, t := range trades {
		total += t.Price * t.Size
	}
	return total
}
