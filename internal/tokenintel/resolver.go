package tokenintel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Market thresholds (USD).
const (
	minLiquidityUSD      = 10_000.0
	dustLiquidityUSD     = 1_000.0
	moderateLiquidityUSD = 50_000.0
	suspiciousVolumeRate = 10.0
	newPairMaxAgeDays    = 7.0
)

// fallbackChains is the search order when a pool is not found on ethereum.
var fallbackChains = []string{"ethereum", "bsc", "polygon", "arbitrum", "optimism", "base", "avalanche"}

// TokenRef identifies one side of a pair.
type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// PairInfo is the normalized market view of one trading pair.
type PairInfo struct {
	Chain          string   `json:"chain"`
	Dex            string   `json:"dex"`
	PairAddress    string   `json:"pair_address"`
	Token0         TokenRef `json:"token0"`
	Token1         TokenRef `json:"token1"`
	PriceUSD       float64  `json:"price_usd"`
	LiquidityUSD   float64  `json:"liquidity_usd"`
	Volume24h      float64  `json:"volume_24h"`
	PriceChange24h float64  `json:"price_change_24h"`
	Buys24h        int      `json:"buys_24h"`
	Sells24h       int      `json:"sells_24h"`
	CreatedAt      int64    `json:"created_at,omitempty"`
	Flags          []string `json:"market_flags"`
	Err            string   `json:"error,omitempty"`
}

// dexscreener wire types.
type dsPair struct {
	ChainID     string  `json:"chainId"`
	DexID       string  `json:"dexId"`
	PairAddress string  `json:"pairAddress"`
	PriceUSD    string  `json:"priceUsd"`
	BaseToken   dsToken `json:"baseToken"`
	QuoteToken  dsToken `json:"quoteToken"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type dsToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type dsPairsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

// Resolver looks up pools and tokens on DexScreener.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// clock is overridable for pair-age tests.
	clock func() time.Time
}

func NewResolver(baseURL string, logger *slog.Logger) *Resolver {
	return &Resolver{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		clock:      time.Now,
	}
}

// ResolvePool resolves a pool address to its pair, trying ethereum first
// and then the other supported chains.
func (r *Resolver) ResolvePool(ctx context.Context, poolAddress string) PairInfo {
	addr := strings.ToLower(poolAddress)

	for i, chain := range fallbackChains {
		var resp dsPairsResponse
		url := fmt.Sprintf("%s/dex/pairs/%s/%s", r.baseURL, chain, addr)
		if err := r.getJSON(ctx, url, &resp); err != nil {
			if i == 0 {
				r.logger.Warn("dexscreener lookup failed", "chain", chain, "pool", addr, "error", err)
			}
			continue
		}
		if len(resp.Pairs) > 0 {
			return r.parsePair(resp.Pairs[0])
		}
	}
	return PairInfo{Err: "pool not found on any supported chain"}
}

// TokenMarket aggregates market data across all pairs of a token.
type TokenMarket struct {
	Token             TokenRef   `json:"token"`
	PairCount         int        `json:"pair_count"`
	TotalLiquidityUSD float64    `json:"total_liquidity_usd"`
	TotalVolume24h    float64    `json:"total_volume_24h"`
	Chains            []string   `json:"chains"`
	TopPairs          []PairInfo `json:"top_pairs"`
	Err               string     `json:"error,omitempty"`
}

// ResolveToken fetches every pair trading a token and aggregates liquidity
// and volume across them.
func (r *Resolver) ResolveToken(ctx context.Context, tokenAddress string) TokenMarket {
	var resp dsPairsResponse
	url := fmt.Sprintf("%s/dex/tokens/%s", r.baseURL, strings.ToLower(tokenAddress))
	if err := r.getJSON(ctx, url, &resp); err != nil {
		return TokenMarket{Err: err.Error()}
	}
	if len(resp.Pairs) == 0 {
		return TokenMarket{Err: "no pairs found for token"}
	}

	m := TokenMarket{
		Token: TokenRef{
			Address: resp.Pairs[0].BaseToken.Address,
			Symbol:  resp.Pairs[0].BaseToken.Symbol,
			Name:    resp.Pairs[0].BaseToken.Name,
		},
		PairCount: len(resp.Pairs),
	}

	seen := make(map[string]bool)
	for _, p := range resp.Pairs {
		m.TotalLiquidityUSD += p.Liquidity.USD
		m.TotalVolume24h += p.Volume.H24
		if !seen[p.ChainID] {
			seen[p.ChainID] = true
			m.Chains = append(m.Chains, p.ChainID)
		}
	}
	for _, p := range resp.Pairs[:min(5, len(resp.Pairs))] {
		m.TopPairs = append(m.TopPairs, r.parsePair(p))
	}
	return m
}

func (r *Resolver) parsePair(p dsPair) PairInfo {
	info := PairInfo{
		Chain:          p.ChainID,
		Dex:            p.DexID,
		PairAddress:    p.PairAddress,
		Token0:         TokenRef(p.BaseToken),
		Token1:         TokenRef(p.QuoteToken),
		PriceUSD:       numStr(p.PriceUSD),
		LiquidityUSD:   p.Liquidity.USD,
		Volume24h:      p.Volume.H24,
		PriceChange24h: p.PriceChange.H24,
		Buys24h:        p.Txns.H24.Buys,
		Sells24h:       p.Txns.H24.Sells,
		CreatedAt:      p.PairCreatedAt,
	}
	info.Flags = r.marketFlags(info)
	return info
}

// marketFlags derives the pair-level warning flags.
func (r *Resolver) marketFlags(p PairInfo) []string {
	var flags []string

	if p.LiquidityUSD < minLiquidityUSD {
		flags = append(flags, "LOW_LIQUIDITY")
	}
	if p.LiquidityUSD < dustLiquidityUSD {
		flags = append(flags, "EXTREMELY_LOW_LIQUIDITY")
	}
	if p.LiquidityUSD > 0 && p.Volume24h/p.LiquidityUSD > suspiciousVolumeRate {
		flags = append(flags, "SUSPICIOUS_VOLUME_TO_LIQUIDITY")
	}
	if p.PriceChange24h > 50 || p.PriceChange24h < -50 {
		flags = append(flags, "HIGH_VOLATILITY")
	}
	if p.CreatedAt > 0 {
		created := p.CreatedAt
		if created > 1e12 { // milliseconds
			created /= 1000
		}
		ageDays := r.clock().Sub(time.Unix(created, 0)).Hours() / 24
		if ageDays < newPairMaxAgeDays {
			flags = append(flags, "NEWLY_CREATED")
		}
	}

	if len(flags) == 0 {
		return []string{"MARKET_OK"}
	}
	return flags
}

func (r *Resolver) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
