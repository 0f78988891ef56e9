// Package tools exposes the risk analyzers as named, independently
// invocable units and manages their registration lifecycle.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/risk"
	"github.com/poolscope/poolscope/internal/validation"
)

// Tool names. Descriptions are what the planner reads to decide which tool
// to use.
const (
	ToolConcentration = "analyze_concentration_risk"
	ToolLiquidity     = "analyze_liquidity_depth"
	ToolMarket        = "analyze_market_risk"
	ToolBehavioral    = "analyze_behavioral_risk"
	ToolComposite     = "calculate_composite_risk_score"
	ToolPoolInfo      = "get_pool_info"
)

// AnalyzerToolNames is the fixed full set used for comprehensive requests.
// The composite tool is deliberately absent; it runs after the analyzers.
func AnalyzerToolNames() []string {
	return []string{ToolConcentration, ToolLiquidity, ToolMarket, ToolBehavioral}
}

var errMissingPoolAddress = errors.New("pool_address argument is required")

// Invoker is one callable tool. Implementations are side-effect-free with
// respect to process state; a flat argument object goes in, a JSON-shaped
// result comes out.
type Invoker interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// analyzerTool adapts a risk.Analyzer to the tool contract.
type analyzerTool struct {
	analyzer    risk.Analyzer
	name        string
	description string
}

func (t *analyzerTool) Name() string        { return t.name }
func (t *analyzerTool) Description() string { return t.description }

func (t *analyzerTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pool, err := poolAddressArg(args)
	if err != nil {
		return nil, err
	}
	return toMap(t.analyzer.Analyze(ctx, pool))
}

// compositeTool aggregates the four analyzer results. It takes their
// outputs as arguments rather than re-running them.
type compositeTool struct {
	scorer *risk.Scorer
}

func (t *compositeTool) Name() string { return ToolComposite }
func (t *compositeTool) Description() string {
	return "Combine the four risk analysis results into a weighted composite score with an overall risk level (LOW/MEDIUM/HIGH/CRITICAL) and aggregated flags. Requires the outputs of all four analyzers as arguments."
}

func (t *compositeTool) Invoke(_ context.Context, args map[string]any) (map[string]any, error) {
	concentration, err := resultArg(args, "concentration_result")
	if err != nil {
		return nil, err
	}
	liquidity, err := resultArg(args, "liquidity_result")
	if err != nil {
		return nil, err
	}
	market, err := resultArg(args, "market_result")
	if err != nil {
		return nil, err
	}
	behavioral, err := resultArg(args, "behavioral_result")
	if err != nil {
		return nil, err
	}
	return toMap(t.scorer.Score(concentration, liquidity, market, behavioral))
}

// poolInfoTool returns the pool's static metadata.
type poolInfoTool struct {
	fetcher risk.Fetcher
}

func (t *poolInfoTool) Name() string { return ToolPoolInfo }
func (t *poolInfoTool) Description() string {
	return "Fetch basic pool information: token pair, fee tier, TVL, volume and current prices. Use this for questions about what the pool is rather than how risky it is."
}

func (t *poolInfoTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pool, err := poolAddressArg(args)
	if err != nil {
		return nil, err
	}
	record, err := t.fetcher.FetchPool(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool info: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("pool %s not found", pool)
	}
	return toMap(record)
}

// NewLocalTools builds the in-process tool set backed directly by the
// analyzers. This is the fallback set when the MCP transport is down, and
// the set the MCP server itself exposes.
func NewLocalTools(fetcher risk.Fetcher, cfg *config.Config) []Invoker {
	return []Invoker{
		&analyzerTool{
			analyzer: risk.NewConcentrationAnalyzer(fetcher, cfg),
			name:     ToolConcentration,
			description: "Analyze LP concentration risk for a Uniswap V3 pool: Gini coefficient, " +
				"Herfindahl-Hirschman Index, top-10 holder dominance and LP age distribution. " +
				"Use for questions about whales, holder concentration or mercenary capital.",
		},
		&analyzerTool{
			analyzer: risk.NewLiquidityDepthAnalyzer(fetcher, cfg),
			name:     ToolLiquidity,
			description: "Analyze liquidity depth and slippage risk: simulates $100K and $1M sell " +
				"orders, measures active in-range liquidity and 30-day TVL volatility. " +
				"Use for questions about slippage, exit capacity or market depth.",
		},
		&analyzerTool{
			analyzer: risk.NewMarketRiskAnalyzer(fetcher, cfg),
			name:     ToolMarket,
			description: "Analyze market risk and impermanent loss exposure: utilization rate " +
				"(volume/TVL) and token price correlation over the last 30 days. " +
				"Use for questions about fee efficiency or impermanent loss.",
		},
		&analyzerTool{
			analyzer: risk.NewBehavioralAnalyzer(fetcher, cfg),
			name:     ToolBehavioral,
			description: "Analyze behavioral risk from recent swaps: wash trading (circular flows) " +
				"and sandwich attack exposure (MEV). Use for questions about fake volume " +
				"or manipulation.",
		},
		&compositeTool{scorer: risk.NewScorer(cfg.Scoring)},
		&poolInfoTool{fetcher: fetcher},
	}
}

func poolAddressArg(args map[string]any) (string, error) {
	raw, ok := args["pool_address"].(string)
	if !ok || raw == "" {
		return "", errMissingPoolAddress
	}
	if !validation.IsValidPoolAddress(raw) {
		return "", fmt.Errorf("invalid pool address %q", raw)
	}
	return validation.NormalizeAddress(raw), nil
}

func resultArg(args map[string]any, key string) (risk.Result, error) {
	raw, ok := args[key]
	if !ok {
		return risk.Result{}, fmt.Errorf("%s argument is required", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return risk.Result{}, fmt.Errorf("encode %s: %w", key, err)
	}
	var result risk.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return risk.Result{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return result, nil
}

// toMap round-trips a value through JSON into the generic tool result
// shape.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	return out, nil
}
