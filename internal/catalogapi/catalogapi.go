// Package catalogapi is the HTTP client for the upstream registry's
// catalog endpoint: paginated top-by-downloads crate listings,
// optionally scoped to a category.
package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Crate is one entry of a catalog listing response.
type Crate struct {
	Name             string `json:"name"`
	MaxVersion       string `json:"max_version"`
	MaxStableVersion string `json:"max_stable_version"`
}

type listResponse struct {
	Crates []Crate `json:"crates"`
}

// Client is the collaborator the seed builder depends on; the core
// components never call it directly.
type Client interface {
	TopByDownloads(ctx context.Context, page, perPage int, category string) ([]Crate, error)
}

// HTTPClient is the production Client, backed by net/http with
// exponential-backoff retries on transient failures.
type HTTPClient struct {
	BaseURL    string
	HTTP       *http.Client
	MaxRetries uint64
}

// NewHTTPClient builds an HTTPClient pointed at the given catalog base
// URL (e.g. "https://crates.io/api/v1").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 5,
	}
}

// TopByDownloads implements Client. category, when non-empty, scopes the
// listing to that category.
func (c *HTTPClient) TopByDownloads(ctx context.Context, page, perPage int, category string) ([]Crate, error) {
	if perPage > 100 {
		perPage = 100
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", "downloads")
	if category != "" {
		q.Set("category", category)
	}
	reqURL := c.BaseURL + "/crates?" + q.Encode()

	var crates []Crate
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("catalog api %s: server error %d", reqURL, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("catalog api %s: status %d", reqURL, resp.StatusCode))
		}

		var body listResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("catalog api %s: decode: %w", reqURL, err))
		}
		crates = body.Crates
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries())
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("catalog api %s: %w", reqURL, err)
	}
	return crates, nil
}

func (c *HTTPClient) retries() uint64 {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 5
}
