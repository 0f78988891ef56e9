package risk

import (
	"math"

	"github.com/poolscope/poolscope/internal/config"
)

// CompositeResult is the aggregate of the four analyzer outputs.
type CompositeResult struct {
	Score           int               `json:"composite_score"`
	Level           string            `json:"risk_level"`
	Flags           []string          `json:"risk_flags"`
	ComponentScores map[string]int    `json:"component_scores"`
	RawMetrics      map[string]Result `json:"raw_metrics"`
}

// Scorer combines the four component results into one weighted score.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score produces the weighted composite. The weighted mean is commutative
// in its inputs apart from the fixed per-component weights, and flags are
// aggregated as a set, so output does not depend on evaluation order.
func (s *Scorer) Score(concentration, liquidity, market, behavioral Result) CompositeResult {
	composite := int(math.Round(
		float64(concentration.Score)*s.cfg.WeightConcentration +
			float64(liquidity.Score)*s.cfg.WeightLiquidity +
			float64(market.Score)*s.cfg.WeightMarket +
			float64(behavioral.Score)*s.cfg.WeightBehavioral,
	))

	return CompositeResult{
		Score: composite,
		Level: s.level(composite),
		Flags: mergeFlags(concentration.Flags, liquidity.Flags, market.Flags, behavioral.Flags),
		ComponentScores: map[string]int{
			"concentration":   concentration.Score,
			"liquidity_depth": liquidity.Score,
			"market_risk":     market.Score,
			"behavioral":      behavioral.Score,
		},
		RawMetrics: map[string]Result{
			"concentration":   concentration,
			"liquidity_depth": liquidity,
			"market_risk":     market,
			"behavioral":      behavioral,
		},
	}
}

// level maps the composite score to its configured band, or UNKNOWN for a
// score outside every band. Unreachable with a valid config spanning 0-100.
func (s *Scorer) level(score int) string {
	for _, band := range s.cfg.Levels {
		if score >= band.Min && score <= band.Max {
			return band.Name
		}
	}
	return "UNKNOWN"
}

// mergeFlags deduplicates flags across components, dropping the low-risk
// sentinel once any real flag is present. First-seen order is preserved.
func mergeFlags(flagLists ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, flags := range flagLists {
		for _, f := range flags {
			if f == FlagLowRisk {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			merged = append(merged, f)
		}
	}
	if len(merged) == 0 {
		return []string{FlagLowRisk}
	}
	return merged
}
