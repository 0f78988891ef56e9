package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestScorer() *Scorer {
	return NewScorer(testConfig().Scoring)
}

func TestScorerWeightedComposite(t *testing.T) {
	s := newTestScorer()

	res := s.Score(
		Result{Score: 40, Flags: []string{"HIGH_GINI"}},
		Result{Score: 60, Flags: []string{FlagLowRisk}},
		Result{Score: 20, Flags: []string{"HIGH_IL_RISK"}},
		Result{Score: 10, Flags: []string{FlagLowRisk}},
	)

	// 40*0.3 + 60*0.3 + 20*0.2 + 10*0.2 = 36
	assert.Equal(t, 36, res.Score)
	assert.Equal(t, "MEDIUM", res.Level)
	assert.Equal(t, []string{"HIGH_GINI", "HIGH_IL_RISK"}, res.Flags)
	assert.Equal(t, 40, res.ComponentScores["concentration"])
	assert.Equal(t, 10, res.ComponentScores["behavioral"])
}

func TestScorerLevels(t *testing.T) {
	s := newTestScorer()
	cases := []struct {
		score int
		level string
	}{
		{0, "LOW"},
		{29, "LOW"},
		{30, "MEDIUM"},
		{59, "MEDIUM"},
		{60, "HIGH"},
		{79, "HIGH"},
		{80, "CRITICAL"},
		{100, "CRITICAL"},
	}
	for _, tc := range cases {
		r := Result{Score: tc.score, Flags: []string{FlagLowRisk}}
		got := s.Score(r, r, r, r)
		assert.Equal(t, tc.score, got.Score)
		assert.Equal(t, tc.level, got.Level, "score %d", tc.score)
	}
}

func TestScorerUnknownLevel(t *testing.T) {
	s := NewScorer(testConfig().Scoring)
	// Score outside every configured band.
	s.cfg.Levels = s.cfg.Levels[:1] // only LOW 0-29 remains
	r := Result{Score: 50, Flags: []string{FlagLowRisk}}
	assert.Equal(t, "UNKNOWN", s.Score(r, r, r, r).Level)
}

func TestScorerFlagAggregation(t *testing.T) {
	s := newTestScorer()

	// All low risk: sentinel survives.
	low := Result{Score: 0, Flags: []string{FlagLowRisk}}
	assert.Equal(t, []string{FlagLowRisk}, s.Score(low, low, low, low).Flags)

	// One real flag: sentinel dropped, duplicates collapsed.
	flagged := Result{Score: 10, Flags: []string{"HIGH_GINI", "HIGH_GINI"}}
	got := s.Score(flagged, low, low, low)
	assert.Equal(t, []string{"HIGH_GINI"}, got.Flags)
}

func TestScorerOrderInsensitive(t *testing.T) {
	s := newTestScorer()

	a := Result{Score: 80, Flags: []string{"CRITICAL_GINI"}}
	b := Result{Score: 20, Flags: []string{"HIGH_SLIPPAGE_1M"}}
	c := Result{Score: 50, Flags: []string{"HIGH_IL_RISK"}}
	d := Result{Score: 10, Flags: []string{"HIGH_MEV_EXPOSURE"}}

	// Weights differ per slot, so swap results between equal-weight slots
	// only: concentration/liquidity at 0.3, market/behavioral at 0.2.
	first := s.Score(a, b, c, d)
	second := s.Score(b, a, d, c)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.ElementsMatch(t, first.Flags, second.Flags)
}

func TestScorerDegradedComponent(t *testing.T) {
	s := newTestScorer()

	healthy := Result{Score: 20, Flags: []string{FlagLowRisk}}
	degraded := NoData("subgraph unavailable")

	got := s.Score(degraded, healthy, healthy, healthy)
	// Degraded component contributes zero but its flag survives.
	assert.Equal(t, 14, got.Score)
	assert.Contains(t, got.Flags, FlagNoData)
	assert.Equal(t, "subgraph unavailable", got.RawMetrics["concentration"].Err)
}
