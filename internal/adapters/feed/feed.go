// Package feed provides event sources for the backtest engine: a JSONL
// file reader for recorded market data and an in-memory slice feed.
package feed

import (
	"context"
	"io"
	"sort"

	"github.com/dmarzal/predictlab/internal/domain"
)

// Slice replays an in-memory event list in timestamp order.
type Slice struct {
	events []domain.Event
	pos    int
}

// FromSlice builds a feed over the given events, stably sorted by
// timestamp so same-instant events keep their relative order.
func FromSlice(events []domain.Event) *Slice {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].When().Before(sorted[j].When())
	})
	return &Slice{events: sorted}
}

// Next returns the next event, or io.EOF when exhausted.
func (s *Slice) Next(ctx context.Context) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Rewind restarts the feed from the first event.
func (s *Slice) Rewind() {
	s.pos = 0
}
