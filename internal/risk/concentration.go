package risk

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/subgraph"
)

// ConcentrationAnalyzer measures how unevenly pool liquidity is held across
// LP positions. Heavily concentrated pools carry systemic exit risk: a
// handful of whales leaving can drain the pool.
type ConcentrationAnalyzer struct {
	fetcher    Fetcher
	thresholds config.ConcentrationThresholds
	window     config.WindowConfig
	now        func() time.Time
}

func NewConcentrationAnalyzer(f Fetcher, cfg *config.Config) *ConcentrationAnalyzer {
	return &ConcentrationAnalyzer{
		fetcher:    f,
		thresholds: cfg.Thresholds.Concentration,
		window:     cfg.Window,
		now:        time.Now,
	}
}

func (a *ConcentrationAnalyzer) Name() string { return "concentration_risk" }

// ageBucket is one band of the LP age histogram.
type ageBucket struct {
	Count        int     `json:"count"`
	LiquidityPct float64 `json:"liquidity_pct"`
}

func (a *ConcentrationAnalyzer) Analyze(ctx context.Context, poolAddress string) Result {
	positions, err := a.fetcher.FetchPositions(ctx, poolAddress)
	if err != nil {
		logging.L(ctx).Warn("position fetch failed", "pool", poolAddress, "error", err)
		return NoData("position fetch failed: " + err.Error())
	}
	if len(positions) == 0 {
		return NoData("no positions found for this pool")
	}

	values := make([]float64, len(positions))
	var total float64
	for i, p := range positions {
		values[i] = parseFloat(p.Liquidity)
		total += values[i]
	}

	g := gini(values)
	h := hhi(values, total)
	dominance := topNDominance(values, total, 10)

	mercenary, medium, longTerm := a.ageHistogram(positions)

	flags := a.flags(g, h, dominance, mercenary.LiquidityPct)

	return Result{
		Score: a.score(g, h, dominance),
		Flags: flags,
		Metrics: map[string]any{
			"gini_coefficient":           round4(g),
			"herfindahl_hirschman_index": round2(h),
			"top10_dominance_pct":        round2(dominance),
			"total_positions":            len(positions),
			"lp_age_distribution": map[string]ageBucket{
				"mercenary":   mercenary,
				"medium_term": medium,
				"long_term":   longTerm,
			},
		},
	}
}

// ageHistogram buckets positions by age with liquidity-weighted shares.
func (a *ConcentrationAnalyzer) ageHistogram(positions []subgraph.Position) (mercenary, medium, longTerm ageBucket) {
	nowUnix := a.now().Unix()
	mercenaryCutoff := int64(a.window.LPAgeMercenaryDays) * 86400
	longTermCutoff := int64(a.window.LPAgeLongTermDays) * 86400

	var mercLiq, medLiq, longLiq float64
	for _, p := range positions {
		age := nowUnix - parseInt(p.Transaction.Timestamp)
		liq := parseFloat(p.Liquidity)
		switch {
		case age < mercenaryCutoff:
			mercenary.Count++
			mercLiq += liq
		case age < longTermCutoff:
			medium.Count++
			medLiq += liq
		default:
			longTerm.Count++
			longLiq += liq
		}
	}

	total := mercLiq + medLiq + longLiq
	if total > 0 {
		mercenary.LiquidityPct = round2(mercLiq / total * 100)
		medium.LiquidityPct = round2(medLiq / total * 100)
		longTerm.LiquidityPct = round2(longLiq / total * 100)
	}
	return mercenary, medium, longTerm
}

func (a *ConcentrationAnalyzer) flags(g, h, dominance, mercenaryPct float64) []string {
	var flags []string
	t := a.thresholds

	switch {
	case dominance > t.Top10CriticalPct:
		flags = append(flags, "CRITICAL_TOP10_DOMINANCE")
	case dominance > t.Top10HighPct:
		flags = append(flags, "HIGH_TOP10_DOMINANCE")
	}
	switch {
	case g > t.GiniCritical:
		flags = append(flags, "CRITICAL_GINI")
	case g > t.GiniHigh:
		flags = append(flags, "HIGH_GINI")
	}
	switch {
	case h > t.HHICritical:
		flags = append(flags, "CRITICAL_HHI")
	case h > t.HHIHigh:
		flags = append(flags, "HIGH_HHI")
	}
	if mercenaryPct > t.MercenaryLiquidity {
		flags = append(flags, "HIGH_MERCENARY_LIQUIDITY")
	}
	return orLowRisk(flags)
}

// score is the unweighted mean of the three concentration metrics, each
// normalized to 0-100.
func (a *ConcentrationAnalyzer) score(g, h, dominance float64) int {
	giniScore := g * 100
	hhiScore := math.Min(h/100, 100)
	return int(math.Round((giniScore + hhiScore + dominance) / 3))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
