// Package storeapi talks to per-store product search endpoints.
package storeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRateLimit  = 2.0
	defaultBurst      = 5
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond

	// maxBodyBytes caps how much of a response body is read
	maxBodyBytes = 1 << 20
)

// Config holds configuration for the store search client
type Config struct {
	// Endpoints maps a store name to the base URL of its search API
	Endpoints  map[string]string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, per store
	Burst      int
	MaxRetries int
	Backoff    time.Duration
	UserAgent  string
}

// Client handles communication with store search APIs. Each store gets its own rate limiter.
type Client struct {
	httpClient *http.Client
	endpoints  map[string]string
	limiters   map[string]*rate.Limiter
	maxRetries int
	backoff    time.Duration
	userAgent  string
	debug      bool
}

// NewClient creates a new store search client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "SmartGroceryCart/1.0"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoints:  make(map[string]string, len(cfg.Endpoints)),
		limiters:   make(map[string]*rate.Limiter, len(cfg.Endpoints)),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		userAgent:  cfg.UserAgent,
	}
	for store, base := range cfg.Endpoints {
		c.endpoints[store] = strings.TrimRight(base, "/")
		c.limiters[store] = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return c
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(msg string, fields ...zap.Field) {
	if c.debug {
		zap.L().Debug(msg, fields...)
	}
}

// Stores returns the stores that have a configured endpoint, sorted
func (c *Client) Stores() []string {
	stores := make([]string, 0, len(c.endpoints))
	for s := range c.endpoints {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	return stores
}

// exponentialBackoff returns the wait before retrying after the given attempt
func (c *Client) exponentialBackoff(attempt int) time.Duration {
	return c.backoff * time.Duration(1<<(attempt-1))
}

// readLimitedBody reads at most limit bytes
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// retryable reports whether a status code is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(domain.ErrStoreAPIFailure, "request failed: %v", err)
	}
	return resp, nil
}

// SearchProducts searches one store's catalog. A store that has nothing matching
// returns an empty product list, not an error.
func (c *Client) SearchProducts(ctx context.Context, store, city, query string) (*domain.SearchResponse, error) {
	base, ok := c.endpoints[store]
	if !ok {
		return nil, eris.Wrapf(domain.ErrNoEndpoint, "store %q", store)
	}
	log := zap.L().With(zap.String("store", store), zap.String("query", query))

	params := url.Values{}
	params.Add("q", query)
	if city != "" {
		params.Add("city", city)
	}
	reqURL := fmt.Sprintf("%s/v1/search?%s", base, params.Encode())
	c.debugLog("store search", zap.String("url", reqURL))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "store search cancelled")
			case <-time.After(c.exponentialBackoff(attempt - 1)):
			}
		}

		if err := c.limiters[store].Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter error")
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "store search cancelled")
			}
			log.Warn("store search request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		body, readErr := readLimitedBody(resp.Body, maxBodyBytes)
		resp.Body.Close()
		if readErr != nil {
			lastErr = eris.Wrapf(domain.ErrStoreAPIFailure, "read body: %v", readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			c.debugLog("store has no listings", zap.String("store", store))
			return &domain.SearchResponse{Store: store, Query: query}, nil
		case retryable(resp.StatusCode):
			log.Warn("store search api error", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			lastErr = eris.Wrapf(domain.ErrStoreAPIFailure, "status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, eris.Wrapf(domain.ErrStoreAPIFailure, "status %d: %s", resp.StatusCode, string(body))
		}

		var searchResp domain.SearchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			return nil, eris.Wrap(err, "failed to decode response")
		}
		searchResp.Store = store
		if searchResp.Query == "" {
			searchResp.Query = query
		}

		c.debugLog("store search done", zap.Int("products", len(searchResp.Products)))
		return &searchResp, nil
	}

	log.Error("all store search retries failed", zap.Error(lastErr))
	return nil, lastErr
}
