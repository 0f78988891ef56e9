package risk

import (
	"context"
	"math"
	"sort"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/subgraph"
)

// BehavioralAnalyzer inspects recent swaps for wash trading and sandwich
// attacks. Swaps are always fetched fresh; a stale window would hide the
// very manipulation this looks for.
type BehavioralAnalyzer struct {
	fetcher    Fetcher
	thresholds config.BehavioralThresholds
	window     config.WindowConfig
}

func NewBehavioralAnalyzer(f Fetcher, cfg *config.Config) *BehavioralAnalyzer {
	return &BehavioralAnalyzer{
		fetcher:    f,
		thresholds: cfg.Thresholds.Behavioral,
		window:     cfg.Window,
	}
}

func (a *BehavioralAnalyzer) Name() string { return "behavioral_risk" }

func (a *BehavioralAnalyzer) Analyze(ctx context.Context, poolAddress string) Result {
	swaps, err := a.fetcher.FetchRecentSwaps(ctx, poolAddress, a.window.SwapLimit)
	if err != nil {
		logging.L(ctx).Warn("swap fetch failed", "pool", poolAddress, "error", err)
		return NoData("swap fetch failed: " + err.Error())
	}
	if len(swaps) == 0 {
		return NoData("no swap data found for this pool")
	}

	washPct, patterns := detectWashTrading(swaps)
	mevPct, victims := detectSandwichAttacks(swaps)

	if len(patterns) > 10 {
		patterns = patterns[:10]
	}

	return Result{
		Score: a.score(washPct, mevPct),
		Flags: a.flags(washPct, mevPct),
		Metrics: map[string]any{
			"wash_trading_pct":     round2(washPct),
			"mev_exposure_pct":     round2(mevPct),
			"total_swaps_analyzed": len(swaps),
			"sandwich_victims":     len(victims),
			"suspicious_patterns":  patterns,
		},
	}
}

// washPattern records one circular flow for reporting.
type washPattern struct {
	Block     string   `json:"block"`
	Addresses []string `json:"addresses"`
}

func groupByBlock(swaps []subgraph.Swap) map[string][]subgraph.Swap {
	byBlock := make(map[string][]subgraph.Swap)
	for _, s := range swaps {
		byBlock[s.Transaction.BlockNumber] = append(byBlock[s.Transaction.BlockNumber], s)
	}
	return byBlock
}

// detectWashTrading flags circular sender↔recipient flows inside a single
// block. Each mutual pair marks both directions as suspicious, so it
// contributes 2 to the suspicious count.
func detectWashTrading(swaps []subgraph.Swap) (float64, []washPattern) {
	if len(swaps) == 0 {
		return 0, nil
	}

	var patterns []washPattern
	suspicious := 0

	for block, blockSwaps := range groupByBlock(swaps) {
		if len(blockSwaps) < 2 {
			continue
		}

		flows := make(map[string][]string)
		for _, s := range blockSwaps {
			flows[s.Sender] = append(flows[s.Sender], s.Recipient)
		}

		for sender, recipients := range flows {
			for _, recipient := range recipients {
				for _, back := range flows[recipient] {
					if back == sender {
						patterns = append(patterns, washPattern{
							Block:     block,
							Addresses: []string{sender, recipient},
						})
						suspicious += 2
						break
					}
				}
			}
		}
	}

	return float64(suspicious) / float64(len(swaps)) * 100, patterns
}

// detectSandwichAttacks scans each block's swaps in id order for a triple
// where the outer two share an origin and the middle one does not. The
// middle transaction is the victim; victims are counted once.
func detectSandwichAttacks(swaps []subgraph.Swap) (float64, []string) {
	if len(swaps) == 0 {
		return 0, nil
	}

	victimSet := make(map[string]struct{})

	for _, blockSwaps := range groupByBlock(swaps) {
		if len(blockSwaps) < 3 {
			continue
		}

		sort.Slice(blockSwaps, func(i, j int) bool {
			return blockSwaps[i].ID < blockSwaps[j].ID
		})

		for i := 0; i+2 < len(blockSwaps); i++ {
			front, middle, back := blockSwaps[i], blockSwaps[i+1], blockSwaps[i+2]
			if front.Origin == back.Origin && middle.Origin != front.Origin {
				victimSet[middle.Transaction.ID] = struct{}{}
			}
		}
	}

	victims := make([]string, 0, len(victimSet))
	for v := range victimSet {
		victims = append(victims, v)
	}
	sort.Strings(victims)

	return float64(len(victims)) / float64(len(swaps)) * 100, victims
}

func (a *BehavioralAnalyzer) flags(washPct, mevPct float64) []string {
	var flags []string
	t := a.thresholds

	switch {
	case washPct > t.WashTradingCriticalPct:
		flags = append(flags, "CRITICAL_WASH_TRADING")
	case washPct > t.WashTradingHighPct:
		flags = append(flags, "HIGH_WASH_TRADING")
	}
	switch {
	case mevPct > t.MEVExposureCriticalPct:
		flags = append(flags, "CRITICAL_MEV_EXPOSURE")
	case mevPct > t.MEVExposureHighPct:
		flags = append(flags, "HIGH_MEV_EXPOSURE")
	}
	return orLowRisk(flags)
}

func (a *BehavioralAnalyzer) score(washPct, mevPct float64) int {
	return int(math.Round(math.Min((washPct+mevPct)/2, 100)))
}

// Compile-time checks that every analyzer satisfies the shared interface.
var (
	_ Analyzer = (*ConcentrationAnalyzer)(nil)
	_ Analyzer = (*LiquidityDepthAnalyzer)(nil)
	_ Analyzer = (*MarketRiskAnalyzer)(nil)
	_ Analyzer = (*BehavioralAnalyzer)(nil)
)
