package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/poolscope/poolscope/internal/tokenintel"
	"github.com/poolscope/poolscope/internal/tools"
)

// Tool definitions for the pool risk MCP server.
// Descriptions are what the LLM host reads to decide which tool to use.

var ToolAnalyzeConcentration = mcp.NewTool(tools.ToolConcentration,
	mcp.WithDescription(
		"Analyze LP concentration risk for a Uniswap V3 pool. "+
			"Computes the Gini coefficient, Herfindahl-Hirschman index, top-10 holder "+
			"dominance and the age distribution of liquidity positions. "+
			"High concentration means a few holders can drain the pool."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address (e.g. '0x88e6...')")),
)

var ToolAnalyzeLiquidity = mcp.NewTool(tools.ToolLiquidity,
	mcp.WithDescription(
		"Analyze liquidity depth risk for a Uniswap V3 pool. "+
			"Simulates the price impact of $100K and $1M sell orders, measures the share "+
			"of liquidity active around the current price and the 30-day TVL volatility."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolAnalyzeMarket = mcp.NewTool(tools.ToolMarket,
	mcp.WithDescription(
		"Analyze market risk for a Uniswap V3 pool: average volume/TVL utilization, "+
			"token price correlation and the implied impermanent loss risk level."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolAnalyzeBehavioral = mcp.NewTool(tools.ToolBehavioral,
	mcp.WithDescription(
		"Analyze behavioral risk in a Uniswap V3 pool's recent swaps: wash trading "+
			"(mutual sender/recipient pairs within a block) and MEV sandwich attack exposure."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolCompositeScore = mcp.NewTool(tools.ToolComposite,
	mcp.WithDescription(
		"Combine the four analyzer outputs into a weighted composite risk score "+
			"with an overall level (LOW/MEDIUM/HIGH/CRITICAL) and aggregated flags. "+
			"Pass the outputs of the four analyze_* tools as arguments."),
	mcp.WithObject("concentration_result",
		mcp.Required(),
		mcp.Description("Output of analyze_concentration_risk")),
	mcp.WithObject("liquidity_result",
		mcp.Required(),
		mcp.Description("Output of analyze_liquidity_depth")),
	mcp.WithObject("market_result",
		mcp.Required(),
		mcp.Description("Output of analyze_market_risk")),
	mcp.WithObject("behavioral_result",
		mcp.Required(),
		mcp.Description("Output of analyze_behavioral_risk")),
)

var ToolPoolInfo = mcp.NewTool(tools.ToolPoolInfo,
	mcp.WithDescription(
		"Fetch basic information about a Uniswap V3 pool: token symbols, fee tier, "+
			"TVL, volume and current prices."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolTokenSecurity = mcp.NewTool(tokenintel.ToolSecurity,
	mcp.WithDescription(
		"Analyze the pool's base token contract for security risks via GoPlus: "+
			"honeypot, taxes, mintability, ownership and proxy flags, with a 0-100 risk score."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address whose base token to scan")),
)

var ToolTokenMarket = mcp.NewTool(tokenintel.ToolMarket,
	mcp.WithDescription(
		"Resolve a pool address to its tokens and market data: price, liquidity, "+
			"24h volume, price change and trade counts, with market warning flags."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolTokenSentiment = mcp.NewTool(tokenintel.ToolSentiment,
	mcp.WithDescription(
		"Score market sentiment for the pool's base token from trade flow imbalance, "+
			"price momentum and volume turnover."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)

var ToolTokenClassify = mcp.NewTool(tokenintel.ToolClassify,
	mcp.WithDescription(
		"Run security, market and sentiment analysis for the pool's base token and "+
			"classify it as SAFE, RISKY or DANGER with a weighted composite score."),
	mcp.WithString("pool_address",
		mcp.Required(),
		mcp.Description("The pool contract address")),
)
