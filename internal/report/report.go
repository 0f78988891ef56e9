// Package report renders a composite risk analysis into a human-readable
// Markdown audit report.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/poolscope/poolscope/internal/risk"
	"github.com/poolscope/poolscope/internal/subgraph"
)

var levelBadges = map[string]string{
	"LOW":      "🟢",
	"MEDIUM":   "🟡",
	"HIGH":     "🟠",
	"CRITICAL": "🔴",
}

// Generator renders Markdown reports.
type Generator struct {
	clock func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{clock: time.Now}
}

// Generate renders the full report. Sections for components that failed
// carry the error instead of metrics; the report is always complete.
func (g *Generator) Generate(poolAddress string, pool *subgraph.Pool, composite risk.CompositeResult) string {
	sections := []string{
		g.header(poolAddress, pool, composite),
		summary(composite),
		concentrationSection(composite.RawMetrics["concentration"]),
		liquiditySection(composite.RawMetrics["liquidity_depth"]),
		marketSection(composite.RawMetrics["market_risk"]),
		behavioralSection(composite.RawMetrics["behavioral"]),
		recommendations(composite),
		footer(),
	}
	return strings.Join(sections, "\n\n")
}

func (g *Generator) header(poolAddress string, pool *subgraph.Pool, composite risk.CompositeResult) string {
	badge, ok := levelBadges[composite.Level]
	if !ok {
		badge = "⚪"
	}

	token0, token1 := "TOKEN0", "TOKEN1"
	if pool != nil {
		if pool.Token0.Symbol != "" {
			token0 = pool.Token0.Symbol
		}
		if pool.Token1.Symbol != "" {
			token1 = pool.Token1.Symbol
		}
	}

	return fmt.Sprintf(`# Uniswap V3 Pool Risk Analysis Report

**Pool:** %s/%s
**Address:** `+"`%s`"+`
**Risk Level:** %s **%s** (Score: %d/100)
**Generated:** %s`,
		token0, token1, poolAddress, badge, composite.Level, composite.Score,
		g.clock().UTC().Format("2006-01-02 15:04:05 UTC"))
}

func summary(composite risk.CompositeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, `## Executive Summary

This pool has been assigned a **%s** risk rating with a composite score of **%d/100**.

### Component Risk Scores
- **Concentration Risk:** %d/100
- **Liquidity Depth Risk:** %d/100
- **Market Risk:** %d/100
- **Behavioral Risk:** %d/100`,
		composite.Level, composite.Score,
		composite.ComponentScores["concentration"],
		composite.ComponentScores["liquidity_depth"],
		composite.ComponentScores["market_risk"],
		composite.ComponentScores["behavioral"])

	var active []string
	for _, f := range composite.Flags {
		if f != risk.FlagLowRisk {
			active = append(active, f)
		}
	}
	if len(active) > 0 {
		b.WriteString("\n\n### ⚠️ Active Risk Flags\n")
		for _, f := range active {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	} else {
		b.WriteString("\n\n### ✅ No Critical Risk Flags Detected")
	}
	return b.String()
}

func concentrationSection(r risk.Result) string {
	const title = "## 1. Concentration Risk (Whale Analysis)"
	if r.Err != "" {
		return fmt.Sprintf("%s\n\n⚠️ %s", title, r.Err)
	}

	gini := metricFloat(r.Metrics, "gini_coefficient")
	hhi := metricFloat(r.Metrics, "herfindahl_hirschman_index")
	top10 := metricFloat(r.Metrics, "top10_dominance_pct")
	ages := ageDistribution(r.Metrics)

	var b strings.Builder
	fmt.Fprintf(&b, `%s

### Inequality Metrics
- **Gini Coefficient:** %g (0 = perfect equality, 1 = perfect inequality)
- **HHI Index:** %g (>2500 = high concentration)
- **Top 10 Holder Dominance:** %g%%

### LP Age Distribution
- **Mercenary LPs:** %d positions (%g%% of liquidity)
- **Medium-term LPs:** %d positions (%g%% of liquidity)
- **Long-term LPs:** %d positions (%g%% of liquidity)

### Interpretation
`, title, gini, hhi, top10,
		ages["mercenary"].Count, ages["mercenary"].LiquidityPct,
		ages["medium_term"].Count, ages["medium_term"].LiquidityPct,
		ages["long_term"].Count, ages["long_term"].LiquidityPct)

	switch {
	case top10 > 70:
		b.WriteString("⚠️ **CRITICAL:** Liquidity is extremely concentrated. Top 10 holders control the majority of the pool.\n")
	case top10 > 50:
		b.WriteString("⚠️ **HIGH RISK:** Top 10 holders have significant control. Pool vulnerable to coordinated exits.\n")
	default:
		b.WriteString("✅ Liquidity distribution appears healthy.\n")
	}
	if ages["mercenary"].LiquidityPct > 50 {
		b.WriteString("⚠️ **FLIGHT RISK:** Majority of liquidity is from recently opened positions.\n")
	}
	return b.String()
}

func liquiditySection(r risk.Result) string {
	const title = "## 2. Liquidity & Depth Risk"
	if r.Err != "" {
		return fmt.Sprintf("%s\n\n⚠️ %s", title, r.Err)
	}

	impact100K := metricFloat(r.Metrics, "price_impact_100k_pct")
	impact1M := metricFloat(r.Metrics, "price_impact_1m_pct")
	active := metricFloat(r.Metrics, "active_liquidity_pct")
	volatility := metricFloat(r.Metrics, "tvl_volatility_30d_pct")

	var b strings.Builder
	fmt.Fprintf(&b, `%s

### Slippage Simulation
- **$100K Sell Order Impact:** %g%%
- **$1M Sell Order Impact:** %g%%

### Liquidity Efficiency
- **Active (In-Range) Liquidity:** %g%%
- **TVL Volatility (30-day):** %g%%

### Interpretation
`, title, impact100K, impact1M, active, volatility)

	switch {
	case impact100K > 3:
		b.WriteString("⚠️ **CRITICAL:** Extremely high slippage for moderate-sized orders. Poor liquidity depth.\n")
	case impact100K > 1:
		b.WriteString("⚠️ **MODERATE:** Noticeable slippage on $100K orders. May deter large traders.\n")
	default:
		b.WriteString("✅ Good liquidity depth for retail-sized orders.\n")
	}
	if active < 30 {
		b.WriteString("⚠️ **INEFFICIENT:** Most liquidity is out-of-range and not earning fees or providing depth.\n")
	}
	return b.String()
}

func marketSection(r risk.Result) string {
	const title = "## 3. Market Risk & Impermanent Loss"
	if r.Err != "" {
		return fmt.Sprintf("%s\n\n⚠️ %s", title, r.Err)
	}

	utilization := metricFloat(r.Metrics, "avg_utilization_rate")
	correlation := metricFloat(r.Metrics, "price_correlation")
	ilRisk, _ := r.Metrics["il_risk_level"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, `%s

### Efficiency Metrics
- **Avg Utilization Rate (Volume/TVL):** %.4f (%.2f%% daily)
- **Token Price Correlation:** %g
- **IL Risk Level:** %s

### Interpretation
`, title, utilization, utilization*100, correlation, ilRisk)

	switch {
	case utilization < 0.01:
		b.WriteString("⚠️ **CRITICAL:** Very low utilization. LPs earning minimal fees, likely to exit.\n")
	case utilization < 0.05:
		b.WriteString("⚠️ **LOW EFFICIENCY:** Below-average utilization. May not attract long-term LPs.\n")
	default:
		b.WriteString("✅ Healthy utilization rate. LPs are earning competitive fees.\n")
	}
	if ilRisk == "VERY_HIGH" || ilRisk == "HIGH" {
		fmt.Fprintf(&b, "⚠️ **%s IL RISK:** Token prices are moving independently. High impermanent loss exposure.\n", ilRisk)
	}
	return b.String()
}

func behavioralSection(r risk.Result) string {
	const title = "## 4. Behavioral Risk (Wash Trading & MEV)"
	if r.Err != "" {
		return fmt.Sprintf("%s\n\n⚠️ %s", title, r.Err)
	}

	wash := metricFloat(r.Metrics, "wash_trading_pct")
	mev := metricFloat(r.Metrics, "mev_exposure_pct")
	swaps := int(metricFloat(r.Metrics, "total_swaps_analyzed"))

	var b strings.Builder
	fmt.Fprintf(&b, `%s

### Bot Activity Metrics
- **Wash Trading Index:** %g%% of %d swaps
- **MEV Exposure (Sandwich Attacks):** %g%%

### Interpretation
`, title, wash, swaps, mev)

	switch {
	case wash > 15:
		b.WriteString("⚠️ **CRITICAL:** Extremely high wash trading detected. Volume is likely inorganic.\n")
	case wash > 5:
		b.WriteString("⚠️ **MODERATE:** Notable wash trading activity. Exercise caution with volume metrics.\n")
	default:
		b.WriteString("✅ Low wash trading. Volume appears organic.\n")
	}
	switch {
	case mev > 25:
		b.WriteString("⚠️ **CRITICAL:** Pool is heavily targeted by MEV bots. Retail traders at high risk.\n")
	case mev > 10:
		b.WriteString("⚠️ **MODERATE:** Significant MEV activity. Users should use MEV protection.\n")
	}
	return b.String()
}

func recommendations(composite risk.CompositeResult) string {
	var b strings.Builder
	b.WriteString("## Recommendations\n\n")

	switch composite.Level {
	case "CRITICAL":
		b.WriteString("🔴 **DO NOT PROVIDE LIQUIDITY** to this pool without understanding the severe risks.")
	case "HIGH":
		b.WriteString("🟠 **CAUTION ADVISED:** Only provide liquidity if you can actively monitor and exit quickly.")
	case "MEDIUM":
		b.WriteString("🟡 **MODERATE RISK:** Suitable for experienced LPs who understand concentrated liquidity.")
	default:
		b.WriteString("🟢 **GENERALLY SAFE:** Pool shows healthy fundamentals for liquidity provision.")
	}

	b.WriteString("\n\n### Specific Actions:\n")
	for _, rec := range flagActions(composite.Flags) {
		fmt.Fprintf(&b, "\n- %s", rec)
	}
	return b.String()
}

// flagActions maps flag substrings to one action each, in a fixed order.
func flagActions(flags []string) []string {
	table := []struct {
		substr string
		action string
	}{
		{"TOP10_DOMINANCE", "Monitor large LP positions for exit signals"},
		{"MERCENARY", "Expect potential liquidity flight; avoid long-term commitments"},
		{"SLIPPAGE", "Use limit orders and slippage protection for large trades"},
		{"UTILIZATION", "Low fee generation; consider more active pools"},
		{"IL_RISK", "Tokens are uncorrelated; prepare for significant impermanent loss"},
		{"WASH_TRADING", "Volume metrics are unreliable; verify with other data sources"},
		{"MEV", "Use MEV-protected RPC endpoints (e.g. Flashbots, MEVBlocker)"},
	}

	var actions []string
	for _, entry := range table {
		for _, f := range flags {
			if strings.Contains(f, entry.substr) {
				actions = append(actions, entry.action)
				break
			}
		}
	}
	return actions
}

func footer() string {
	return `---

**Disclaimer:** This analysis is for informational purposes only and does not constitute financial advice.
Risk metrics are based on on-chain data and mathematical models, which may not capture all risk factors.
Always conduct your own research before providing liquidity or trading.`
}

// metricFloat reads a numeric metric whether it arrived as a native number
// or through a JSON round trip.
func metricFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

type ageBucket struct {
	Count        int     `json:"count"`
	LiquidityPct float64 `json:"liquidity_pct"`
}

// ageDistribution re-decodes the LP age histogram, which may be a typed
// value or a generic map depending on how the result traveled.
func ageDistribution(m map[string]any) map[string]ageBucket {
	out := map[string]ageBucket{}
	raw, ok := m["lp_age_distribution"]
	if !ok {
		return out
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return out
	}
	json.Unmarshal(data, &out)
	return out
}
