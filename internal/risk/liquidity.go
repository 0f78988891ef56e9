package risk

import (
	"context"
	"math"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/subgraph"
)

// Fixed sell-order sizes simulated against the tick distribution.
const (
	sellOrder100K = 100_000
	sellOrder1M   = 1_000_000
)

// LiquidityDepthAnalyzer measures how well the pool absorbs large sell
// orders, how much of its liquidity sits near the current price, and how
// stable its TVL has been.
type LiquidityDepthAnalyzer struct {
	fetcher    Fetcher
	thresholds config.LiquidityThresholds
	window     config.WindowConfig
}

func NewLiquidityDepthAnalyzer(f Fetcher, cfg *config.Config) *LiquidityDepthAnalyzer {
	return &LiquidityDepthAnalyzer{
		fetcher:    f,
		thresholds: cfg.Thresholds.Liquidity,
		window:     cfg.Window,
	}
}

func (a *LiquidityDepthAnalyzer) Name() string { return "liquidity_depth_risk" }

// Analyze needs the current token1/token0 price to locate the active tick
// range; callers obtain it from the pool record.
func (a *LiquidityDepthAnalyzer) AnalyzeWithPrice(ctx context.Context, poolAddress string, currentPrice float64) Result {
	ticks, err := a.fetcher.FetchTicks(ctx, poolAddress)
	if err != nil {
		logging.L(ctx).Warn("tick fetch failed", "pool", poolAddress, "error", err)
		return NoData("tick fetch failed: " + err.Error())
	}
	if len(ticks) == 0 {
		return NoData("no tick data found for this pool")
	}

	impact100K := simulateSellOrder(ticks, sellOrder100K)
	impact1M := simulateSellOrder(ticks, sellOrder1M)
	activePct := activeLiquidityPct(ticks, currentPrice)
	volatility := a.tvlVolatility(ctx, poolAddress)

	return Result{
		Score: a.score(impact100K, impact1M, activePct, volatility),
		Flags: a.flags(impact100K, impact1M, activePct, volatility),
		Metrics: map[string]any{
			"price_impact_100k_pct":  round4(impact100K),
			"price_impact_1m_pct":    round4(impact1M),
			"active_liquidity_pct":   round2(activePct),
			"tvl_volatility_30d_pct": round2(volatility),
			"total_ticks":            len(ticks),
		},
	}
}

// Analyze resolves the current price from the pool record, then runs the
// depth analysis.
func (a *LiquidityDepthAnalyzer) Analyze(ctx context.Context, poolAddress string) Result {
	pool, err := a.fetcher.FetchPool(ctx, poolAddress)
	if err != nil {
		return NoData("pool fetch failed: " + err.Error())
	}
	if pool == nil {
		return NoData("pool not found")
	}
	return a.AnalyzeWithPrice(ctx, poolAddress, parseFloat(pool.Token1Price))
}

// simulateSellOrder estimates price impact with the heuristic
// sellUSD / sqrt(total gross liquidity), scaled to a percentage and capped
// at 100. A rough approximation of AMM slippage, not a tick walk.
func simulateSellOrder(ticks []subgraph.Tick, sellUSD float64) float64 {
	var total float64
	for _, t := range ticks {
		total += math.Abs(parseFloat(t.LiquidityGross))
	}
	if total == 0 {
		return 100
	}
	return math.Min(sellUSD/math.Sqrt(total)*100, 100)
}

// activeLiquidityPct returns the share of gross liquidity whose tick falls
// within a 10% price move of the current tick.
func activeLiquidityPct(ticks []subgraph.Tick, currentPrice float64) float64 {
	if len(ticks) == 0 || currentPrice <= 0 {
		return 0
	}

	// Uniswap V3 tick spacing: tick = log_1.0001(price).
	currentTick := int64(math.Log(currentPrice) / math.Log(1.0001))
	band := int64(math.Log(1.1) / math.Log(1.0001)) // ~953 ticks
	lower, upper := currentTick-band, currentTick+band

	var active, total float64
	for _, t := range ticks {
		idx := parseInt(t.TickIdx)
		liq := math.Abs(parseFloat(t.LiquidityGross))
		total += liq
		if idx >= lower && idx <= upper {
			active += liq
		}
	}
	if total == 0 {
		return 0
	}
	return active / total * 100
}

// tvlVolatility is stdev/mean of daily TVL over the configured window, as
// a percentage. Missing history degrades to zero rather than failing the
// whole analysis.
func (a *LiquidityDepthAnalyzer) tvlVolatility(ctx context.Context, poolAddress string) float64 {
	days, err := a.fetcher.FetchPoolDayData(ctx, poolAddress, a.window.PoolDayDataDays)
	if err != nil {
		logging.L(ctx).Warn("day data fetch failed", "pool", poolAddress, "error", err)
		return 0
	}
	if len(days) < 2 {
		return 0
	}

	tvls := make([]float64, len(days))
	for i, d := range days {
		tvls[i] = parseFloat(d.TVLUSD)
	}
	m := mean(tvls)
	if m == 0 {
		return 0
	}
	return stdev(tvls) / m * 100
}

func (a *LiquidityDepthAnalyzer) flags(impact100K, impact1M, activePct, volatility float64) []string {
	var flags []string
	t := a.thresholds

	switch {
	case impact100K > t.Impact100KCriticalPct:
		flags = append(flags, "CRITICAL_SLIPPAGE_100K")
	case impact100K > t.Impact100KHighPct:
		flags = append(flags, "HIGH_SLIPPAGE_100K")
	}
	switch {
	case impact1M > t.Impact1MCriticalPct:
		flags = append(flags, "CRITICAL_SLIPPAGE_1M")
	case impact1M > t.Impact1MHighPct:
		flags = append(flags, "HIGH_SLIPPAGE_1M")
	}
	if activePct < t.ActiveLiquidityLowPct {
		flags = append(flags, "LOW_ACTIVE_LIQUIDITY")
	}
	if volatility > t.TVLVolatilityHighPct {
		flags = append(flags, "HIGH_TVL_VOLATILITY")
	}
	return orLowRisk(flags)
}

// score blends the three depth signals: half from price impact, the rest
// from inactive liquidity and TVL volatility, each capped at 100 before
// weighting.
func (a *LiquidityDepthAnalyzer) score(impact100K, impact1M, activePct, volatility float64) int {
	impactScore := math.Min((impact100K+impact1M)/2*10, 100)
	inactiveScore := 100 - activePct
	volatilityScore := math.Min(volatility*2, 100)
	return int(math.Round(impactScore*0.5 + inactiveScore*0.3 + volatilityScore*0.2))
}
