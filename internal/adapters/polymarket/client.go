// Package polymarket fetches recorded market data from the Polymarket
// CLOB API and converts it into replayable simulation events.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCLOBBase = "https://clob.polymarket.com"

	// Rate limits kept well under the documented API limits.
	historyRatePerSec = 15
	tradesRatePerSec  = 30

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Polymarket HTTP client with rate limiting and retries.
type Client struct {
	http           *http.Client
	clobBase       string
	historyLimiter *rate.Limiter
	tradesLimiter  *rate.Limiter
}

// NewClient creates a Client against the given CLOB base URL, or the
// production URL when empty.
func NewClient(clobBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	return &Client{
		http:           &http.Client{Timeout: 10 * time.Second},
		clobBase:       clobBase,
		historyLimiter: rate.NewLimiter(historyRatePerSec, 5),
		tradesLimiter:  rate.NewLimiter(tradesRatePerSec, 10),
	}
}

// PricePoint is one sample of the CLOB price history.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

type historyResponse struct {
	History []struct {
		T int64   `json:"t"` // unix seconds
		P float64 `json:"p"`
	} `json:"history"`
}

// FetchPriceHistory returns the price samples for a token over the
// given interval (e.g. "1d", "1w", "max").
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID, interval string) ([]PricePoint, error) {
	url := fmt.Sprintf("%s/prices-history?market=%s&interval=%s&fidelity=10", c.clobBase, tokenID, interval)

	var resp historyResponse
	if err := c.get(ctx, c.historyLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchPriceHistory: %w", err)
	}

	points := make([]PricePoint, 0, len(resp.History))
	for _, h := range resp.History {
		if h.P <= 0 {
			continue
		}
		points = append(points, PricePoint{
			Timestamp: time.Unix(h.T, 0).UTC(),
			Price:     h.P,
		})
	}
	return points, nil
}

// VenueTrade is one historical trade reported by the data API.
type VenueTrade struct {
	Side      string
	Price     float64
	Size      float64
	Timestamp time.Time
}

type tradeResponse []struct {
	Side      string  `json:"side"`
	Price     string  `json:"price"`
	Size      string  `json:"size"`
	Timestamp float64 `json:"timestamp"`
}

// FetchTrades returns recent trades for a token.
func (c *Client) FetchTrades(ctx context.Context, tokenID string) ([]VenueTrade, error) {
	url := fmt.Sprintf("%s/trades?market=%s", c.clobBase, tokenID)

	var resp tradeResponse
	if err := c.get(ctx, c.tradesLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchTrades: %w", err)
	}

	trades := make([]VenueTrade, 0, len(resp))
	for _, t := range resp {
		trades = append(trades, VenueTrade{
			Side:      t.Side,
			Price:     parseFloat(t.Price),
			Size:      parseFloat(t.Size),
			Timestamp: time.Unix(int64(t.Timestamp), 0).UTC(),
		})
	}
	return trades, nil
}

// get performs a GET with rate limiting and retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("polymarket: retrying request", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
