// Package storage persists backtest runs in SQLite (pure Go, no CGo).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmarzal/predictlab/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id          TEXT PRIMARY KEY,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME NOT NULL,
    initial_capital REAL NOT NULL,
    final_value     REAL NOT NULL,
    return_pct      REAL NOT NULL DEFAULT 0,
    max_drawdown    REAL NOT NULL DEFAULT 0,
    total_fees      REAL NOT NULL DEFAULT 0,
    realized_pnl    REAL NOT NULL DEFAULT 0,
    events_seen     INTEGER NOT NULL DEFAULT 0,
    orders_placed   INTEGER NOT NULL DEFAULT 0,
    trade_count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL REFERENCES runs(run_id),
    market         TEXT NOT NULL,
    outcome        TEXT NOT NULL,
    side           TEXT NOT NULL,
    size           REAL NOT NULL,
    entry_price    REAL NOT NULL,
    exit_price     REAL NOT NULL,
    pnl            REAL NOT NULL,
    pnl_pct        REAL NOT NULL DEFAULT 0,
    pnl_pct_valid  INTEGER NOT NULL DEFAULT 1,
    entry_time     DATETIME NOT NULL,
    exit_time      DATETIME NOT NULL,
    resolved       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS equity (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(run_id),
    ts              DATETIME NOT NULL,
    cash            REAL NOT NULL,
    positions_value REAL NOT NULL,
    total_value     REAL NOT NULL,
    unrealized_pnl  REAL NOT NULL,
    realized_pnl    REAL NOT NULL,
    drawdown        REAL NOT NULL,
    high_water_mark REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_run   ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run   ON equity(run_id, ts);
`

// SQLiteStorage implements ports.RunStorage on a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path
// and applies the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun persists the run header, ledger and equity curve in one
// transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, r domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, initial_capital, final_value,
		                  return_pct, max_drawdown, total_fees, realized_pnl,
		                  events_seen, orders_placed, trade_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt, r.FinishedAt, r.InitialCapital, r.FinalValue,
		r.ReturnPct, r.MaxDrawdown, r.TotalFees, r.RealizedPnl,
		r.EventsSeen, r.OrdersPlaced, len(r.Trades),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	for _, t := range r.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, market, outcome, side, size, entry_price, exit_price,
			                    pnl, pnl_pct, pnl_pct_valid, entry_time, exit_time, resolved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, t.Key.Market, t.Key.Outcome, string(t.Side), t.Size, t.EntryPrice, t.ExitPrice,
			t.Pnl, t.PnlPct, boolInt(t.PnlPctValid), t.EntryTime, t.ExitTime, boolInt(t.MarketResolved),
		)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: insert trade: %w", err)
		}
	}

	for _, p := range r.EquityCurve {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO equity (run_id, ts, cash, positions_value, total_value,
			                    unrealized_pnl, realized_pnl, drawdown, high_water_mark)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, p.Timestamp, p.Cash, p.PositionsValue, p.TotalValue,
			p.UnrealizedPnl, p.RealizedPnl, p.Drawdown, p.HighWaterMark,
		)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRuns lists persisted runs, most recent first.
func (s *SQLiteStorage) GetRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, initial_capital, final_value, return_pct, max_drawdown, trade_count
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var r domain.RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.InitialCapital, &r.FinalValue,
			&r.ReturnPct, &r.MaxDrawdown, &r.TradeCount); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetTrades returns the trade ledger of a persisted run, in exit order.
func (s *SQLiteStorage) GetTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market, outcome, side, size, entry_price, exit_price,
		       pnl, pnl_pct, pnl_pct_valid, entry_time, exit_time, resolved
		FROM trades WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		var pctValid, resolved int
		var entry, exit time.Time
		if err := rows.Scan(&t.Key.Market, &t.Key.Outcome, &side, &t.Size, &t.EntryPrice, &t.ExitPrice,
			&t.Pnl, &t.PnlPct, &pctValid, &entry, &exit, &resolved); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan: %w", err)
		}
		t.Side = domain.PositionSide(side)
		t.PnlPctValid = pctValid != 0
		t.MarketResolved = resolved != 0
		t.EntryTime = entry.UTC()
		t.ExitTime = exit.UTC()
		t.HoldingTime = t.ExitTime.Sub(t.EntryTime)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the database connection cleanly.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
