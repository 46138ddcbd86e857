package feed_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmarzal/predictlab/internal/adapters/feed"
	"github.com/dmarzal/predictlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONL_ParsesAndSortsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"type":"trade","market":"0xabc","outcome":"YES","side":"BUY","price":0.52,"size":100,"timestamp":"2025-06-01T12:05:00Z"}
{"type":"price","market":"0xabc","outcome":"YES","price":0.50,"volume":5000,"timestamp":"2025-06-01T12:00:00Z"}
{"type":"resolved","market":"0xabc","outcome":"YES","price":1.0,"timestamp":"2025-06-01T13:00:00Z"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := feed.LoadJSONL(path)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := f.Next(ctx)
	require.NoError(t, err)
	tick, ok := first.(domain.PriceUpdate)
	require.True(t, ok, "events come back sorted by timestamp")
	assert.InDelta(t, 0.50, tick.Price, 1e-9)
	assert.Equal(t, domain.MarketKey{Market: "0xabc", Outcome: "YES"}, tick.Key)

	second, err := f.Next(ctx)
	require.NoError(t, err)
	trade, ok := second.(domain.MarketTrade)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, trade.Side)

	third, err := f.Next(ctx)
	require.NoError(t, err)
	res, ok := third.(domain.MarketResolved)
	require.True(t, ok)
	assert.InDelta(t, 1.0, res.ResolutionPrice, 1e-9)

	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLoadJSONL_UnknownTypeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"candle","timestamp":"2025-06-01T12:00:00Z"}`+"\n"), 0o644))

	_, err := feed.LoadJSONL(path)
	assert.ErrorContains(t, err, "unknown event type")
}

func TestLoadJSONL_MissingFile(t *testing.T) {
	_, err := feed.LoadJSONL("does-not-exist.jsonl")
	assert.Error(t, err)
}

func TestSlice_RewindReplaysIdentically(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []domain.Event{
		domain.PriceUpdate{Key: domain.MarketKey{Market: "m", Outcome: "YES"}, Price: 0.5, Timestamp: base},
		domain.PriceUpdate{Key: domain.MarketKey{Market: "m", Outcome: "YES"}, Price: 0.6, Timestamp: base.Add(time.Minute)},
	}
	f := feed.FromSlice(events)
	ctx := context.Background()

	first, err := f.Next(ctx)
	require.NoError(t, err)
	f.Rewind()
	again, err := f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
