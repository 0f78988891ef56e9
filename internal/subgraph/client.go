// Package subgraph fetches pool state from a Graph-protocol subgraph.
//
// All list queries paginate with an id_gt cursor rather than skip offsets:
// skip degrades on large collections and the Graph caps it, while id_gt
// stays O(page) regardless of depth. Pages are fetched sequentially so the
// rate-limit delay between requests is meaningful.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poolscope/poolscope/internal/cache"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/metrics"
	"github.com/poolscope/poolscope/internal/retry"
)

// Client executes GraphQL queries against one subgraph endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	batchSize  int
	rateDelay  time.Duration
	maxRetries int
	retryDelay time.Duration
	cache      *cache.Cache
	logger     *slog.Logger
}

// NewClient builds a client from config. cache may be nil to disable
// caching entirely.
func NewClient(cfg config.SubgraphConfig, pg config.PaginationConfig, c *cache.Cache, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		batchSize:  pg.BatchSize,
		rateDelay:  pg.RateLimitDelay,
		maxRetries: pg.MaxRetries,
		retryDelay: pg.RetryDelay,
		cache:      c,
		logger:     logger,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Execute runs one query with linear-backoff retries. HTTP transport
// failures, non-2xx statuses and GraphQL-level errors all count as failed
// attempts; context cancellation aborts immediately.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	attempt := 0
	return retry.Do(ctx, c.maxRetries, c.retryDelay, func() error {
		attempt++
		if attempt > 1 {
			metrics.SubgraphRetriesTotal.Inc()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("subgraph request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("subgraph status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}

		var gr gqlResponse
		if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(gr.Errors) > 0 {
			msgs := make([]string, len(gr.Errors))
			for i, e := range gr.Errors {
				msgs[i] = e.Message
			}
			return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
		}
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
		return nil
	})
}

// record is any entity that can act as a pagination cursor.
type record interface {
	recordID() string
}

// fetchAll drains a paginated collection. The query must declare
// ($first: Int!, $lastID: String!) and select the collection under field,
// filtered by id_gt: $lastID and ordered by id ascending. A short page
// terminates the loop, so an endpoint that keeps returning full pages of
// the same records would loop; id_gt ordering makes that impossible on a
// conforming subgraph.
func fetchAll[T record](ctx context.Context, c *Client, field, query string, variables map[string]any) ([]T, error) {
	var all []T
	lastID := ""
	for {
		vars := map[string]any{"first": c.batchSize, "lastID": lastID}
		for k, v := range variables {
			vars[k] = v
		}

		var page map[string]json.RawMessage
		if err := c.Execute(ctx, query, vars, &page); err != nil {
			return nil, fmt.Errorf("fetch %s page after %q: %w", field, lastID, err)
		}

		var items []T
		if err := json.Unmarshal(page[field], &items); err != nil {
			return nil, fmt.Errorf("unmarshal %s page: %w", field, err)
		}

		all = append(all, items...)
		metrics.SubgraphPagesTotal.WithLabelValues(field).Inc()

		if len(items) < c.batchSize {
			return all, nil
		}
		lastID = items[len(items)-1].recordID()

		logging.L(ctx).Debug("fetched page", "entity", field, "total", len(all), "cursor", lastID)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.rateDelay):
		}
	}
}
