package main

import (
	"context"
	"log/slog"

	"github.com/dmarzal/predictlab/config"
	"github.com/dmarzal/predictlab/internal/adapters/feed"
	"github.com/dmarzal/predictlab/internal/adapters/optimizer"
	"github.com/dmarzal/predictlab/internal/strategy"
)

// runOptimization tunes the threshold strategy's entry/exit levels by
// replaying the same event stream under parameters suggested by the
// optimization service, scoring each trial by its total return.
func runOptimization(ctx context.Context, cfg *config.Config, client *optimizer.Client, events *feed.Slice, trials int) error {
	bounds := []optimizer.Bound{
		{SignalID: "buy_below", MinWeight: 0.05, MaxWeight: 0.45, InitialWeight: cfg.Strategy.BuyBelow},
		{SignalID: "sell_above", MinWeight: 0.55, MaxWeight: 0.95, InitialWeight: cfg.Strategy.SellAbove},
	}

	optimizerID, initial, err := client.Create(ctx, bounds)
	if err != nil {
		return err
	}
	slog.Info("optimization session created",
		"optimizer_id", optimizerID,
		"trials", trials,
		"initial", initial,
	)

	for trial := 1; trial <= trials; trial++ {
		params, err := client.Suggest(ctx, optimizerID)
		if err != nil {
			return err
		}

		strat := strategy.NewThreshold(strategy.ThresholdConfig{
			BuyBelow:     params["buy_below"],
			SellAbove:    params["sell_above"],
			Size:         cfg.Strategy.OrderSize,
			MaxPositions: cfg.Strategy.MaxPositions,
		})

		result, err := runOnce(ctx, cfg, events, strat)
		if err != nil {
			return err
		}

		score := result.ReturnPct
		if err := client.Evaluate(ctx, optimizerID, params, score); err != nil {
			return err
		}

		slog.Info("trial complete",
			"trial", trial,
			"buy_below", params["buy_below"],
			"sell_above", params["sell_above"],
			"return_pct", score,
			"trades", len(result.Trades),
		)
	}

	best, err := client.Best(ctx, optimizerID)
	if err != nil {
		return err
	}
	slog.Info("optimization finished", "best", best)
	return nil
}
