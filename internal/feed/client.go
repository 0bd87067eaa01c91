// Package feed fetches the upstream feed's bounded trailing window of
// records for one instrument. The feed exposes at most WindowSize recent
// rows per request; assembling full histories from those windows is the
// reconcile package's job.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fundlab/lofsync/internal/resilience"
)

// Fetcher returns the feed's current window of raw rows for one instrument.
// Implementations must be safe for concurrent use across batch workers.
type Fetcher interface {
	FetchWindow(ctx context.Context, instrumentID string) ([]map[string]string, error)
}

// Options configures the HTTP feed client.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec and Burst bound the aggregate request rate toward the
	// feed across all workers sharing this client.
	RatePerSec float64
	Burst      int
	// WindowSize is the row cap requested per fetch.
	WindowSize int
}

// Client implements Fetcher against the jisilu-style history endpoint.
// One Client is shared by all batch workers, so its rate limiter and
// circuit breaker apply globally.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewClient creates a feed client with the given options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.jisilu.cn"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 2
	}
	if opts.WindowSize == 0 {
		opts.WindowSize = 50
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = opts.MaxRetries
	retryCfg.OnRetry = resilience.RetryLogger("fetch_window")

	return &Client{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("feed circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		retry: retryCfg,
	}
}

// FetchWindow fetches the instrument's current window, retrying transient
// failures with backoff. Requests pass through the shared rate limiter and
// circuit breaker.
func (c *Client) FetchWindow(ctx context.Context, instrumentID string) ([]map[string]string, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]map[string]string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "feed: rate limiter wait")
		}
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]map[string]string, error) {
			return c.fetchOnce(ctx, instrumentID)
		})
	})
}

func (c *Client) fetchOnce(ctx context.Context, instrumentID string) ([]map[string]string, error) {
	url := fmt.Sprintf("%s/data/lof/hist_list/%s?___jsl=LST___t&rp=%d&page=1",
		c.opts.BaseURL, instrumentID, c.opts.WindowSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: build request for %s", instrumentID)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: fetch %s", instrumentID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("feed: fetch %s: status %d", instrumentID, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return decodeRows(resp.Body)
}

// payload matches the feed's response envelope: a list of rows, each with
// an opaque cell map of column values.
type payload struct {
	Rows []struct {
		ID   json.RawMessage            `json:"id"`
		Cell map[string]json.RawMessage `json:"cell"`
	} `json:"rows"`
}

func decodeRows(r io.Reader) ([]map[string]string, error) {
	var p payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, eris.Wrap(err, "feed: decode response")
	}

	rows := make([]map[string]string, 0, len(p.Rows))
	for _, row := range p.Rows {
		cell := make(map[string]string, len(row.Cell))
		for k, v := range row.Cell {
			cell[k] = rawToString(v)
		}
		rows = append(rows, cell)
	}
	return rows, nil
}

// rawToString flattens a JSON cell value to its text form without losing
// numeric precision: strings are unquoted, numbers keep their exact source
// text, everything else (null, bool) keeps its literal encoding.
func rawToString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	if string(v) == "null" {
		return ""
	}
	return string(v)
}
