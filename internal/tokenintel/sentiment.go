package tokenintel

import (
	"fmt"
	"strings"
)

// SentimentReport is the momentum-based sentiment verdict. Score follows
// the risk convention: 0 is healthy, 100 is alarming.
type SentimentReport struct {
	Score           int      `json:"sentiment_score"`
	Flags           []string `json:"sentiment_flags"`
	PositiveSignals []string `json:"positive_signals"`
	NegativeSignals []string `json:"negative_signals"`
	Summary         string   `json:"summary"`
}

// SentimentAnalyzer scores crowd behavior from observable market activity:
// trade flow imbalance, price momentum and volume relative to depth. It
// needs no external search API, only the pair data already resolved.
type SentimentAnalyzer struct{}

func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{}
}

// Analyze derives sentiment from a pair's 24h activity.
func (a *SentimentAnalyzer) Analyze(pair PairInfo) SentimentReport {
	if pair.Err != "" {
		return SentimentReport{
			Score:   50,
			Flags:   []string{"NO_MARKET_DATA"},
			Summary: "No market data available for sentiment analysis.",
		}
	}

	score := 50
	var flags, positive, negative []string

	// Trade flow imbalance. Heavy one-sided selling is the strongest
	// crowd signal available on-chain.
	total := pair.Buys24h + pair.Sells24h
	if total >= 10 {
		sellShare := float64(pair.Sells24h) / float64(total)
		switch {
		case sellShare > 0.75:
			score += 20
			flags = append(flags, "HEAVY_SELLING")
			negative = append(negative, fmt.Sprintf("%.0f%% of trades are sells", sellShare*100))
		case sellShare > 0.60:
			score += 10
			negative = append(negative, "sell-side trade imbalance")
		case sellShare < 0.40:
			score -= 10
			positive = append(positive, "buy-side trade imbalance")
		}
	} else {
		score += 10
		flags = append(flags, "THIN_ACTIVITY")
		negative = append(negative, "fewer than 10 trades in 24h")
	}

	// Price momentum. Crashes read as panic, vertical pumps as mania;
	// both are risk.
	switch {
	case pair.PriceChange24h < -30:
		score += 20
		flags = append(flags, "PRICE_CRASH")
		negative = append(negative, fmt.Sprintf("price down %.1f%% in 24h", -pair.PriceChange24h))
	case pair.PriceChange24h < -10:
		score += 10
		negative = append(negative, "negative price momentum")
	case pair.PriceChange24h > 100:
		score += 15
		flags = append(flags, "PARABOLIC_PUMP")
		negative = append(negative, fmt.Sprintf("price up %.0f%% in 24h", pair.PriceChange24h))
	case pair.PriceChange24h > 5:
		score -= 5
		positive = append(positive, "positive price momentum")
	}

	// Volume relative to depth. Healthy turnover reads positive; churn
	// past 10x depth is already flagged as suspicious by the resolver.
	if pair.LiquidityUSD > 0 {
		turnover := pair.Volume24h / pair.LiquidityUSD
		switch {
		case turnover > suspiciousVolumeRate:
			score += 15
			flags = append(flags, "CHURN_VOLUME")
			negative = append(negative, "volume far exceeds pool depth")
		case turnover > 0.1:
			score -= 5
			positive = append(positive, "sustained organic volume")
		}
	}

	for _, f := range pair.Flags {
		if f == "NEWLY_CREATED" {
			score += 10
			negative = append(negative, "pair created within the last week")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if len(flags) == 0 {
		if score < 50 {
			flags = []string{"POSITIVE_SENTIMENT"}
		} else {
			flags = []string{"SENTIMENT_NEUTRAL"}
		}
	}

	return SentimentReport{
		Score:           score,
		Flags:           flags,
		PositiveSignals: positive,
		NegativeSignals: negative,
		Summary:         summarize(positive, negative),
	}
}

func summarize(positive, negative []string) string {
	var parts []string
	if len(positive) > 0 {
		parts = append(parts, "Positive: "+strings.Join(positive, "; "))
	}
	if len(negative) > 0 {
		parts = append(parts, "Negative: "+strings.Join(negative, "; "))
	}
	if len(parts) == 0 {
		return "No notable sentiment signals in recent market activity."
	}
	return strings.Join(parts, ". ")
}
