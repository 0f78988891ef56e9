package risk

import (
	"context"
	"math"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
)

// targetUtilization is the daily volume/TVL ratio considered healthy for
// fee generation; utilization at or above it contributes zero risk.
const targetUtilization = 0.05

// MarketRiskAnalyzer assesses fee-earning efficiency and impermanent loss
// exposure from the pool's daily history.
type MarketRiskAnalyzer struct {
	fetcher    Fetcher
	thresholds config.MarketThresholds
	window     config.WindowConfig
}

func NewMarketRiskAnalyzer(f Fetcher, cfg *config.Config) *MarketRiskAnalyzer {
	return &MarketRiskAnalyzer{
		fetcher:    f,
		thresholds: cfg.Thresholds.Market,
		window:     cfg.Window,
	}
}

func (a *MarketRiskAnalyzer) Name() string { return "market_risk" }

func (a *MarketRiskAnalyzer) Analyze(ctx context.Context, poolAddress string) Result {
	days, err := a.fetcher.FetchPoolDayData(ctx, poolAddress, a.window.PoolDayDataDays)
	if err != nil {
		logging.L(ctx).Warn("day data fetch failed", "pool", poolAddress, "error", err)
		return NoData("day data fetch failed: " + err.Error())
	}
	if len(days) == 0 {
		return NoData("no historical data found for this pool")
	}

	var utilization []float64
	var prices0, prices1 []float64
	for _, d := range days {
		tvl := parseFloat(d.TVLUSD)
		if tvl > 0 {
			utilization = append(utilization, parseFloat(d.VolumeUSD)/tvl)
		}
		p0, p1 := parseFloat(d.Token0Price), parseFloat(d.Token1Price)
		if p0 > 0 && p1 > 0 {
			prices0 = append(prices0, p0)
			prices1 = append(prices1, p1)
		}
	}

	avgUtilization := mean(utilization)
	correlation := pearson(pctReturns(prices0), pctReturns(prices1))

	return Result{
		Score: a.score(avgUtilization, correlation),
		Flags: a.flags(avgUtilization, correlation),
		Metrics: map[string]any{
			"avg_utilization_rate": round6(avgUtilization),
			"price_correlation":    round4(correlation),
			"il_risk_level":        a.ilRiskLevel(correlation),
			"data_points":          len(days),
		},
	}
}

// ilRiskLevel buckets the price correlation: divergent pairs lose more to
// impermanent loss.
func (a *MarketRiskAnalyzer) ilRiskLevel(correlation float64) string {
	switch {
	case correlation < a.thresholds.CorrelationHighILRisk:
		return "VERY_HIGH"
	case correlation < a.thresholds.CorrelationLowILRisk:
		return "HIGH"
	case correlation < 0.7:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func (a *MarketRiskAnalyzer) flags(utilization, correlation float64) []string {
	var flags []string
	t := a.thresholds

	switch {
	case utilization < t.UtilizationCriticalLow:
		flags = append(flags, "CRITICAL_LOW_UTILIZATION")
	case utilization < t.UtilizationLow:
		flags = append(flags, "LOW_UTILIZATION")
	}
	switch {
	case correlation < t.CorrelationHighILRisk:
		flags = append(flags, "VERY_HIGH_IL_RISK")
	case correlation < t.CorrelationLowILRisk:
		flags = append(flags, "HIGH_IL_RISK")
	}
	return orLowRisk(flags)
}

// score weights IL exposure over utilization: starving LPs of fees is bad,
// divergence losses are worse.
func (a *MarketRiskAnalyzer) score(utilization, correlation float64) int {
	utilizationScore := math.Max(0, 100-utilization/targetUtilization*100)
	utilizationScore = math.Min(utilizationScore, 100)
	correlationScore := (1 - correlation) / 2 * 100
	return int(math.Round(utilizationScore*0.3 + correlationScore*0.7))
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
