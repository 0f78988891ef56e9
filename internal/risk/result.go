// Package risk implements the four pool risk analyzers and the composite
// scorer that combines them.
package risk

import (
	"context"

	"github.com/poolscope/poolscope/internal/subgraph"
)

// Sentinel flags shared by all analyzers.
const (
	FlagNoData  = "NO_DATA"
	FlagLowRisk = "LOW_RISK"
)

// Result is the uniform output of every analyzer. Score is always numeric
// so the composite scorer can aggregate unconditionally; Flags is never
// empty. When Err is set the numeric fields are not trustworthy and
// downstream consumers must treat the error as authoritative.
type Result struct {
	Score   int            `json:"risk_score"`
	Flags   []string       `json:"risk_flags"`
	Metrics map[string]any `json:"metrics"`
	Err     string         `json:"error,omitempty"`
}

// NoData builds the degraded result for empty or unavailable upstream data.
func NoData(reason string) Result {
	return Result{
		Score:   0,
		Flags:   []string{FlagNoData},
		Metrics: map[string]any{},
		Err:     reason,
	}
}

// orLowRisk returns flags unchanged, or the low-risk sentinel when no
// threshold fired.
func orLowRisk(flags []string) []string {
	if len(flags) == 0 {
		return []string{FlagLowRisk}
	}
	return flags
}

// Analyzer is one of the four risk dimensions.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, poolAddress string) Result
}

// Fetcher is the subgraph surface the analyzers consume. *subgraph.Client
// satisfies it; tests substitute fixtures.
type Fetcher interface {
	FetchPool(ctx context.Context, poolAddress string) (*subgraph.Pool, error)
	FetchPositions(ctx context.Context, poolAddress string) ([]subgraph.Position, error)
	FetchTicks(ctx context.Context, poolAddress string) ([]subgraph.Tick, error)
	FetchRecentSwaps(ctx context.Context, poolAddress string, limit int) ([]subgraph.Swap, error)
	FetchPoolDayData(ctx context.Context, poolAddress string, days int) ([]subgraph.PoolDayData, error)
}
