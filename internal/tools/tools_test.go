package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/subgraph"
)

const validPool = "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"

// fixtureFetcher serves a minimal healthy pool.
type fixtureFetcher struct{}

func (fixtureFetcher) FetchPool(context.Context, string) (*subgraph.Pool, error) {
	return &subgraph.Pool{
		ID:                  validPool,
		Token0:              subgraph.Token{Symbol: "USDC", Decimals: "6"},
		Token1:              subgraph.Token{Symbol: "WETH", Decimals: "18"},
		FeeTier:             "500",
		Token1Price:         "1.0",
		TotalValueLockedUSD: "250000000",
	}, nil
}

func (fixtureFetcher) FetchPositions(context.Context, string) ([]subgraph.Position, error) {
	now := time.Now().Unix()
	positions := make([]subgraph.Position, 5)
	for i := range positions {
		positions[i] = subgraph.Position{
			ID:          fmt.Sprintf("%d", i),
			Liquidity:   "1000",
			Transaction: subgraph.TransactionRef{Timestamp: fmt.Sprintf("%d", now-100*86400)},
		}
	}
	return positions, nil
}

func (fixtureFetcher) FetchTicks(context.Context, string) ([]subgraph.Tick, error) {
	return []subgraph.Tick{{ID: "t0", TickIdx: "0", LiquidityGross: "1000000000000000000"}}, nil
}

func (fixtureFetcher) FetchRecentSwaps(context.Context, string, int) ([]subgraph.Swap, error) {
	return []subgraph.Swap{
		{ID: "s1", Sender: "0xa", Recipient: "0xb", Origin: "0xa",
			Transaction: subgraph.TransactionRef{ID: "0xt1", BlockNumber: "1"}},
	}, nil
}

func (fixtureFetcher) FetchPoolDayData(context.Context, string, int) ([]subgraph.PoolDayData, error) {
	return []subgraph.PoolDayData{
		{TVLUSD: "1000000", VolumeUSD: "50000", Token0Price: "100", Token1Price: "50"},
		{TVLUSD: "1000000", VolumeUSD: "50000", Token0Price: "110", Token1Price: "55"},
		{TVLUSD: "1000000", VolumeUSD: "50000", Token0Price: "99", Token1Price: "49.5"},
	}, nil
}

func localToolConfig() *config.Config {
	return &config.Config{
		Window: config.WindowConfig{
			PoolDayDataDays:    30,
			SwapLimit:          2000,
			LPAgeMercenaryDays: 7,
			LPAgeLongTermDays:  90,
		},
		Scoring: config.ScoringConfig{
			WeightConcentration: 0.30,
			WeightLiquidity:     0.30,
			WeightMarket:        0.20,
			WeightBehavioral:    0.20,
			Levels: []config.LevelBand{
				{Name: "LOW", Min: 0, Max: 29},
				{Name: "MEDIUM", Min: 30, Max: 59},
				{Name: "HIGH", Min: 60, Max: 79},
				{Name: "CRITICAL", Min: 80, Max: 100},
			},
		},
	}
}

func localToolsByName(t *testing.T) map[string]Invoker {
	t.Helper()
	set := NewLocalTools(fixtureFetcher{}, localToolConfig())
	byName := make(map[string]Invoker, len(set))
	for _, tool := range set {
		byName[tool.Name()] = tool
	}
	return byName
}

func TestLocalToolSetComplete(t *testing.T) {
	byName := localToolsByName(t)
	for _, name := range []string{
		ToolConcentration, ToolLiquidity, ToolMarket, ToolBehavioral, ToolComposite, ToolPoolInfo,
	} {
		tool, ok := byName[name]
		require.True(t, ok, "missing tool %s", name)
		assert.NotEmpty(t, tool.Description())
	}
}

func TestAnalyzerToolInvocation(t *testing.T) {
	byName := localToolsByName(t)

	out, err := byName[ToolConcentration].Invoke(context.Background(),
		map[string]any{"pool_address": validPool})
	require.NoError(t, err)

	assert.Contains(t, out, "risk_score")
	assert.Contains(t, out, "risk_flags")
	assert.Contains(t, out, "metrics")
}

func TestAnalyzerToolMissingAddress(t *testing.T) {
	byName := localToolsByName(t)

	_, err := byName[ToolMarket].Invoke(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, errMissingPoolAddress)

	_, err = byName[ToolMarket].Invoke(context.Background(),
		map[string]any{"pool_address": "not-an-address"})
	assert.ErrorContains(t, err, "invalid pool address")
}

func TestCompositeToolAggregates(t *testing.T) {
	byName := localToolsByName(t)

	component := map[string]any{"risk_score": 40, "risk_flags": []string{"HIGH_GINI"}}
	out, err := byName[ToolComposite].Invoke(context.Background(), map[string]any{
		"concentration_result": component,
		"liquidity_result":     map[string]any{"risk_score": 40, "risk_flags": []string{"LOW_RISK"}},
		"market_result":        map[string]any{"risk_score": 40, "risk_flags": []string{"LOW_RISK"}},
		"behavioral_result":    map[string]any{"risk_score": 40, "risk_flags": []string{"LOW_RISK"}},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 40, out["composite_score"])
	assert.Equal(t, "MEDIUM", out["risk_level"])
}

func TestCompositeToolMissingComponent(t *testing.T) {
	byName := localToolsByName(t)

	_, err := byName[ToolComposite].Invoke(context.Background(), map[string]any{
		"concentration_result": map[string]any{"risk_score": 40},
	})
	assert.ErrorContains(t, err, "liquidity_result")
}

func TestPoolInfoTool(t *testing.T) {
	byName := localToolsByName(t)

	out, err := byName[ToolPoolInfo].Invoke(context.Background(),
		map[string]any{"pool_address": validPool})
	require.NoError(t, err)

	token0 := out["token0"].(map[string]any)
	assert.Equal(t, "USDC", token0["symbol"])
	assert.Equal(t, "500", out["feeTier"])
}

// fakeCaller serves canned MCP responses.
type fakeCaller struct {
	tools    []mcp.Tool
	result   *mcp.CallToolResult
	callErr  error
	lastCall mcp.CallToolRequest
}

func (f *fakeCaller) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeCaller) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastCall = req
	return f.result, f.callErr
}

func TestMCPLoaderWrapsRemoteTools(t *testing.T) {
	caller := &fakeCaller{
		tools: []mcp.Tool{
			{Name: ToolConcentration, Description: "remote concentration analysis"},
			{Name: ToolBehavioral, Description: "remote behavioral analysis"},
		},
	}
	loader := NewMCPLoader("http://localhost:9100/mcp", testLogger())
	loader.dial = func(context.Context) (mcpCaller, error) { return caller, nil }

	invokers, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, invokers, 2)
	assert.Equal(t, ToolConcentration, invokers[0].Name())
	assert.Equal(t, "remote concentration analysis", invokers[0].Description())
}

func TestMCPToolInvokeParsesJSON(t *testing.T) {
	caller := &fakeCaller{
		result: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `{"risk_score": 42, "risk_flags": ["HIGH_GINI"]}`}},
		},
	}
	tool := &mcpTool{caller: caller, name: ToolConcentration}

	out, err := tool.Invoke(context.Background(), map[string]any{"pool_address": validPool})
	require.NoError(t, err)
	assert.EqualValues(t, 42, out["risk_score"])
	assert.Equal(t, ToolConcentration, caller.lastCall.Params.Name)
}

func TestMCPToolErrorResult(t *testing.T) {
	caller := &fakeCaller{
		result: &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "subgraph unreachable"}},
		},
	}
	tool := &mcpTool{caller: caller, name: ToolMarket}

	_, err := tool.Invoke(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "subgraph unreachable")
}
