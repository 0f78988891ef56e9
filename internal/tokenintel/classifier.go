package tokenintel

import (
	"fmt"
	"math"
	"strings"

	"github.com/poolscope/poolscope/internal/config"
)

// Classification verdicts.
const (
	VerdictSafe   = "SAFE"
	VerdictRisky  = "RISKY"
	VerdictDanger = "DANGER"
)

// criticalSecurityFlags force a DANGER verdict regardless of the weighted
// score.
var criticalSecurityFlags = map[string]bool{
	"HONEYPOT_DETECTED":        true,
	"OWNER_CAN_MODIFY_BALANCE": true,
	"SELFDESTRUCT_FUNCTION":    true,
}

// Classification is the aggregated token verdict.
type Classification struct {
	Verdict         string         `json:"classification"`
	CompositeScore  int            `json:"composite_score"`
	ComponentScores map[string]int `json:"component_scores"`
	Flags           []string       `json:"risk_flags"`
	CriticalIssues  []string       `json:"critical_issues"`
	Recommendation  string         `json:"recommendation"`
	TokenName       string         `json:"token_name"`
	TokenSymbol     string         `json:"token_symbol"`
}

// Classifier folds the three analyzer outputs into one verdict using the
// configured weights. Weight-sum validity is enforced at config load.
type Classifier struct {
	cfg config.TokenIntelConfig
}

func NewClassifier(cfg config.TokenIntelConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify produces the final verdict for a token.
func (c *Classifier) Classify(security SecurityReport, market PairInfo, sentiment SentimentReport) Classification {
	marketScore := marketRiskScore(market)

	composite := float64(security.Score)*c.cfg.WeightSecurity +
		float64(marketScore)*c.cfg.WeightMarket +
		float64(sentiment.Score)*c.cfg.WeightSentiment
	score := int(math.Round(composite))

	verdict := c.verdict(score, security)

	flags := mergeVerdictFlags(security.Flags, market.Flags, sentiment.Flags)

	return Classification{
		Verdict:         verdict,
		CompositeScore:  score,
		ComponentScores: map[string]int{"security": security.Score, "market": marketScore, "sentiment": sentiment.Score},
		Flags:           flags,
		CriticalIssues:  criticalIssues(security, market),
		Recommendation:  recommendation(verdict, flags, security, market),
		TokenName:       security.TokenName,
		TokenSymbol:     security.TokenSymbol,
	}
}

func (c *Classifier) verdict(score int, security SecurityReport) string {
	if security.Honeypot {
		return VerdictDanger
	}
	for _, f := range security.Flags {
		if criticalSecurityFlags[f] {
			return VerdictDanger
		}
	}

	switch {
	case score <= c.cfg.SafeMaxScore:
		return VerdictSafe
	case score >= c.cfg.DangerMinScore:
		return VerdictDanger
	default:
		return VerdictRisky
	}
}

// marketRiskScore converts pair market data into the 0-100 risk scale.
func marketRiskScore(market PairInfo) int {
	if market.Err != "" {
		return 50
	}

	score := 0
	switch {
	case market.LiquidityUSD < dustLiquidityUSD:
		score += 40
	case market.LiquidityUSD < minLiquidityUSD:
		score += 25
	case market.LiquidityUSD < moderateLiquidityUSD:
		score += 10
	}

	if market.LiquidityUSD > 0 {
		ratio := market.Volume24h / market.LiquidityUSD
		switch {
		case ratio > suspiciousVolumeRate:
			score += 20
		case ratio > 5:
			score += 10
		}
	}

	change := math.Abs(market.PriceChange24h)
	switch {
	case change > 50:
		score += 15
	case change > 20:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// mergeVerdictFlags concatenates the analyzer flags, dropping the per-check
// OK sentinels when any real issue exists.
func mergeVerdictFlags(groups ...[]string) []string {
	var all []string
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, f := range group {
			if !seen[f] {
				seen[f] = true
				all = append(all, f)
			}
		}
	}

	var issues []string
	for _, f := range all {
		if !strings.HasSuffix(f, "_OK") && f != "SENTIMENT_NEUTRAL" && f != "POSITIVE_SENTIMENT" {
			issues = append(issues, f)
		}
	}
	if len(issues) == 0 {
		return []string{"ALL_CHECKS_PASSED"}
	}
	return issues
}

func criticalIssues(security SecurityReport, market PairInfo) []string {
	var issues []string
	if security.Honeypot {
		issues = append(issues, "HONEYPOT: tokens cannot be sold")
	}
	if security.OwnerChangeBal {
		issues = append(issues, "Owner can modify token balances")
	}
	if security.Selfdestruct {
		issues = append(issues, "Contract has a self-destruct function")
	}
	if security.HiddenOwner {
		issues = append(issues, "Hidden owner detected")
	}
	if security.SellTaxPct > 20 {
		issues = append(issues, fmt.Sprintf("Very high sell tax: %.1f%%", security.SellTaxPct))
	}
	if market.Err == "" && market.LiquidityUSD < dustLiquidityUSD {
		issues = append(issues, fmt.Sprintf("Extremely low liquidity: $%.0f", market.LiquidityUSD))
	}
	return issues
}

func recommendation(verdict string, flags []string, security SecurityReport, market PairInfo) string {
	switch verdict {
	case VerdictDanger:
		if security.Honeypot {
			return "DO NOT INTERACT. This token is a confirmed honeypot; purchases cannot be sold."
		}
		return "HIGH RISK. Multiple critical security issues detected; avoid this token."
	case VerdictRisky:
		var concerns []string
		seen := make(map[string]bool)
		for _, f := range flags {
			var c string
			switch f {
			case "LOW_LIQUIDITY", "EXTREMELY_LOW_LIQUIDITY":
				c = "low liquidity"
			case "HIGH_TAX_RATE":
				c = "high taxes"
			case "MINTABLE_TOKEN":
				c = "mintable supply"
			default:
				continue
			}
			if !seen[c] {
				seen[c] = true
				concerns = append(concerns, c)
			}
		}
		detail := "various concerns"
		if len(concerns) > 0 {
			detail = strings.Join(concerns, ", ")
		}
		return fmt.Sprintf("PROCEED WITH CAUTION. This token has %s; only commit what you can afford to lose.", detail)
	default:
		if market.Err == "" && market.LiquidityUSD > 100_000 {
			return "RELATIVELY SAFE. No major red flags and good liquidity; standard DeFi risks still apply."
		}
		return "APPEARS SAFE. No major red flags, but liquidity is moderate; trade carefully."
	}
}
