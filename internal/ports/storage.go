package ports

import (
	"context"

	"github.com/dmarzal/predictlab/internal/domain"
)

// RunStorage persists completed backtest runs.
type RunStorage interface {
	// SaveRun persists the run header, its trade ledger and its equity curve.
	SaveRun(ctx context.Context, result domain.RunResult) error

	// GetRuns lists persisted runs, most recent first.
	GetRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// GetTrades returns the trade ledger of a persisted run.
	GetTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error)

	// Close releases the underlying database cleanly.
	Close() error
}
