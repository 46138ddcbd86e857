package ports

import (
	"context"

	"github.com/dmarzal/predictlab/internal/domain"
)

// EventFeed streams simulation input events in timestamp order.
type EventFeed interface {
	// Next returns the next event, or io.EOF when the stream ends.
	Next(ctx context.Context) (domain.Event, error)
}
