package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint string, batchSize, maxRetries int) *Client {
	t.Helper()
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		batchSize:  batchSize,
		rateDelay:  time.Millisecond,
		maxRetries: maxRetries,
		retryDelay: time.Millisecond,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

func decodeRequest(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	var req gqlRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestFetchTicksPaginatesWithCursor(t *testing.T) {
	// Five ticks with batch size two: pages of 2, 2, 1.
	ticks := make([]Tick, 5)
	for i := range ticks {
		ticks[i] = Tick{ID: fmt.Sprintf("0xpool#%d", i), TickIdx: fmt.Sprintf("%d", i*60)}
	}

	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		lastID := req.Variables["lastID"].(string)
		cursors = append(cursors, lastID)

		start := 0
		for i, tk := range ticks {
			if tk.ID > lastID {
				start = i
				break
			}
			start = i + 1
		}
		end := start + 2
		if end > len(ticks) {
			end = len(ticks)
		}
		page := ticks[start:end]

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"ticks": page},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2, 1)
	got, err := c.FetchTicks(context.Background(), "0xPOOL")
	require.NoError(t, err)

	assert.Equal(t, ticks, got)
	assert.Equal(t, []string{"", "0xpool#1", "0xpool#3"}, cursors)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"pool": nil},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100, 3)
	pool, err := c.FetchPool(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100, 3)
	_, err := c.FetchPool(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "status 500")
}

func TestExecuteGraphQLErrorsAreRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "indexer lagging"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100, 2)
	_, err := c.FetchPool(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "indexer lagging")
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, srv.URL, 100, 5)
	_, err := c.FetchPool(ctx, "0xabc")
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestFetchRecentSwapsHonorsLimit(t *testing.T) {
	swaps := make([]Swap, 10)
	for i := range swaps {
		swaps[i] = Swap{
			ID:        fmt.Sprintf("0xtx%d#%d", i, i),
			Timestamp: fmt.Sprintf("%d", 1700000100-i),
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		first := int(req.Variables["first"].(float64))
		before := req.Variables["before"].(string)

		var page []Swap
		for _, s := range swaps {
			if s.Timestamp < before && len(page) < first {
				page = append(page, s)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"swaps": page},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4, 1)
	got, err := c.FetchRecentSwaps(context.Background(), "0xabc", 7)
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.Equal(t, swaps[:7], got)
}

func TestFetchPoolDayDataNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, float64(30), req.Variables["days"])
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"poolDayDatas": []PoolDayData{
				{ID: "0xabc-19900", Date: 1719360000, TVLUSD: "1000000"},
				{ID: "0xabc-19899", Date: 1719273600, TVLUSD: "900000"},
			}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100, 1)
	days, err := c.FetchPoolDayData(context.Background(), "0xabc", 30)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, int64(1719360000), days[0].Date)
}
