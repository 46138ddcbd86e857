// Package optimizer is the HTTP client for the external Bayesian
// parameter-optimization service. The service proposes parameter sets,
// we score them with backtest runs and report the scores back.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const requestsPerSec = 5

// Bound declares the search range for one named parameter.
type Bound struct {
	SignalID      string  `json:"signal_id"`
	MinWeight     float64 `json:"min_weight"`
	MaxWeight     float64 `json:"max_weight"`
	InitialWeight float64 `json:"initial_weight"`
}

// Client talks to the optimizer service.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a Client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, 2),
	}
}

type createResponse struct {
	OptimizerID    string             `json:"optimizer_id"`
	InitialWeights map[string]float64 `json:"initial_weights"`
}

// Create registers a new online optimizer over the given parameter
// bounds and returns its id plus the initial parameter values.
func (c *Client) Create(ctx context.Context, bounds []Bound) (string, map[string]float64, error) {
	body := map[string]any{"signal_bounds": bounds}
	var resp createResponse
	if err := c.post(ctx, "/optimizer/create", body, &resp); err != nil {
		return "", nil, fmt.Errorf("optimizer.Create: %w", err)
	}
	return resp.OptimizerID, resp.InitialWeights, nil
}

type suggestResponse struct {
	Suggestions []map[string]float64 `json:"suggestions"`
	BestWeights map[string]float64   `json:"best_weights"`
}

// Suggest asks the service for the next parameter set to evaluate.
func (c *Client) Suggest(ctx context.Context, optimizerID string) (map[string]float64, error) {
	body := map[string]any{"optimizer_id": optimizerID, "n_suggestions": 1}
	var resp suggestResponse
	if err := c.post(ctx, "/optimizer/suggest", body, &resp); err != nil {
		return nil, fmt.Errorf("optimizer.Suggest: %w", err)
	}
	if len(resp.Suggestions) == 0 {
		return nil, fmt.Errorf("optimizer.Suggest: service returned no suggestions")
	}
	return resp.Suggestions[0], nil
}

// Evaluate reports the score one parameter set achieved.
func (c *Client) Evaluate(ctx context.Context, optimizerID string, params map[string]float64, score float64) error {
	body := map[string]any{"optimizer_id": optimizerID, "weights": params, "score": score}
	var resp map[string]any
	if err := c.post(ctx, "/optimizer/evaluate", body, &resp); err != nil {
		return fmt.Errorf("optimizer.Evaluate: %w", err)
	}
	return nil
}

type bestResponse struct {
	BestWeights map[string]float64 `json:"best_weights"`
}

// Best returns the best parameter set found so far.
func (c *Client) Best(ctx context.Context, optimizerID string) (map[string]float64, error) {
	var resp bestResponse
	if err := c.get(ctx, "/optimizer/"+optimizerID+"/best", &resp); err != nil {
		return nil, fmt.Errorf("optimizer.Best: %w", err)
	}
	return resp.BestWeights, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
