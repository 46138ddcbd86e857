package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmarzal/predictlab/config"
	"github.com/dmarzal/predictlab/internal/adapters/feed"
	"github.com/dmarzal/predictlab/internal/adapters/notify"
	"github.com/dmarzal/predictlab/internal/adapters/optimizer"
	"github.com/dmarzal/predictlab/internal/adapters/polymarket"
	"github.com/dmarzal/predictlab/internal/adapters/storage"
	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/dmarzal/predictlab/internal/engine"
	"github.com/dmarzal/predictlab/internal/engine/book"
	"github.com/dmarzal/predictlab/internal/engine/portfolio"
	"github.com/dmarzal/predictlab/internal/engine/slippage"
	"github.com/dmarzal/predictlab/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	replay := flag.String("replay", "", "path to a JSONL event file to replay")
	fetch := flag.String("fetch", "", "CLOB token id: fetch price history + trades and replay them")
	outcome := flag.String("outcome", "YES", "outcome label for fetched events")
	interval := flag.String("interval", "1d", "price history interval for -fetch")
	runs := flag.Bool("runs", false, "list stored runs and exit")
	optimize := flag.Int("optimize", 0, "run N optimization trials over strategy thresholds")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full trade ledger after the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table)

	if *runs {
		summaries, err := store.GetRuns(ctx, 0)
		if err != nil {
			slog.Error("failed to list runs", "err", err)
			os.Exit(1)
		}
		notifier.PrintRuns(summaries)
		return
	}

	events, err := loadEvents(ctx, cfg, *replay, *fetch, *outcome, *interval)
	if err != nil {
		slog.Error("failed to load events", "err", err)
		os.Exit(1)
	}

	slog.Info("predictlab starting",
		"config", *configPath,
		"slippage_model", cfg.Slippage.Model,
		"initial_capital", cfg.Portfolio.InitialCapital,
	)

	if *optimize > 0 {
		client := optimizer.NewClient(cfg.Optimizer.BaseURL)
		if err := runOptimization(ctx, cfg, client, events, *optimize); err != nil {
			slog.Error("optimization failed", "err", err)
			os.Exit(1)
		}
		return
	}

	result, err := runOnce(ctx, cfg, events, thresholdFromConfig(cfg))
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	if err := store.SaveRun(ctx, *result); err != nil {
		slog.Warn("failed to persist run", "err", err, "run_id", result.RunID)
	}
	notifier.PrintRun(*result)

	slog.Info("predictlab finished",
		"run_id", result.RunID,
		"return_pct", result.ReturnPct,
		"trades", len(result.Trades),
	)
}

// loadEvents resolves the event source: a local JSONL replay file or a
// live fetch from the CLOB API. Exactly one must be requested.
func loadEvents(ctx context.Context, cfg *config.Config, replay, fetch, outcome, interval string) (*feed.Slice, error) {
	switch {
	case replay != "" && fetch != "":
		flag.Usage()
		os.Exit(2)
		return nil, nil
	case replay != "":
		return feed.LoadJSONL(replay)
	case fetch != "":
		client := polymarket.NewClient(cfg.API.CLOBBase)
		points, err := client.FetchPriceHistory(ctx, fetch, interval)
		if err != nil {
			return nil, err
		}
		trades, err := client.FetchTrades(ctx, fetch)
		if err != nil {
			slog.Warn("trade fetch failed, replaying price history only", "err", err)
			trades = nil
		}
		key := domain.MarketKey{Market: fetch, Outcome: outcome}
		return feed.FromSlice(polymarket.BuildEvents(key, points, trades)), nil
	default:
		flag.Usage()
		os.Exit(2)
		return nil, nil
	}
}

// runOnce wires a fresh engine and replays the feed from the start.
func runOnce(ctx context.Context, cfg *config.Config, events *feed.Slice, strat *strategy.Threshold) (*domain.RunResult, error) {
	events.Rewind()

	slip := slippage.New(slippage.Config{
		Model:        slippage.Model(cfg.Slippage.Model),
		FixedRate:    cfg.Slippage.FixedRate,
		BaseRate:     cfg.Slippage.BaseRate,
		ImpactFactor: cfg.Slippage.ImpactFactor,
		ImpactLambda: cfg.Slippage.ImpactLambda,
	})
	books := book.New(book.Config{
		DepthLevels:        cfg.Book.DepthLevels,
		BaseSpreadPct:      cfg.Book.BaseSpreadPct,
		SizeDecay:          cfg.Book.SizeDecay,
		MinLevelSize:       cfg.Book.MinLevelSize,
		VolumeSpreadImpact: cfg.Book.VolumeSpreadImpact,
		FeeRate:            cfg.Portfolio.FeeRate,
		Seed:               cfg.Book.Seed,
	}, slip)
	pf := portfolio.New(portfolio.Config{
		InitialCapital:   cfg.Portfolio.InitialCapital,
		SnapshotInterval: cfg.SnapshotInterval(),
	})

	return engine.New(books, pf, strat).Run(ctx, events)
}

func thresholdFromConfig(cfg *config.Config) *strategy.Threshold {
	return strategy.NewThreshold(strategy.ThresholdConfig{
		BuyBelow:     cfg.Strategy.BuyBelow,
		SellAbove:    cfg.Strategy.SellAbove,
		Size:         cfg.Strategy.OrderSize,
		MaxPositions: cfg.Strategy.MaxPositions,
	})
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
