package subgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/poolscope/poolscope/internal/logging"
)

const poolQuery = `query Pool($id: ID!) {
  pool(id: $id) {
    id
    token0 { id symbol name decimals }
    token1 { id symbol name decimals }
    feeTier
    liquidity
    sqrtPrice
    token0Price
    token1Price
    totalValueLockedUSD
    volumeUSD
    txCount
    createdAtTimestamp
  }
}`

// FetchPool returns the pool record, or a nil pool with nil error when the
// subgraph has no pool at that address.
func (c *Client) FetchPool(ctx context.Context, poolAddress string) (*Pool, error) {
	var out struct {
		Pool *Pool `json:"pool"`
	}
	if err := c.Execute(ctx, poolQuery, map[string]any{"id": strings.ToLower(poolAddress)}, &out); err != nil {
		return nil, fmt.Errorf("fetch pool: %w", err)
	}
	return out.Pool, nil
}

const positionsQuery = `query Positions($pool: String!, $first: Int!, $lastID: String!) {
  positions(
    first: $first
    orderBy: id
    orderDirection: asc
    where: { pool: $pool, id_gt: $lastID, liquidity_gt: "0" }
  ) {
    id
    owner
    liquidity
    depositedToken0
    depositedToken1
    withdrawnToken0
    withdrawnToken1
    tickLower { tickIdx }
    tickUpper { tickIdx }
    transaction { timestamp }
  }
}`

// FetchPositions returns every open position in the pool. Positions are not
// cached: the concentration analysis needs the live holder set, and a stale
// snapshot would hide LP churn between runs.
func (c *Client) FetchPositions(ctx context.Context, poolAddress string) ([]Position, error) {
	return fetchAll[Position](ctx, c, "positions", positionsQuery,
		map[string]any{"pool": strings.ToLower(poolAddress)})
}

const ticksQuery = `query Ticks($pool: String!, $first: Int!, $lastID: String!) {
  ticks(
    first: $first
    orderBy: id
    orderDirection: asc
    where: { pool: $pool, id_gt: $lastID, liquidityNet_not: "0" }
  ) {
    id
    tickIdx
    liquidityGross
    liquidityNet
  }
}`

// FetchTicks returns all initialized ticks for the pool. Tick layouts move
// slowly, so this is a cached entity.
func (c *Client) FetchTicks(ctx context.Context, poolAddress string) ([]Tick, error) {
	key := "ticks:" + strings.ToLower(poolAddress)

	var cached []Tick
	if c.cache != nil && c.cache.Get(ctx, key, "ticks", &cached) {
		logging.L(ctx).Debug("ticks served from cache", "pool", poolAddress, "count", len(cached))
		return cached, nil
	}

	ticks, err := fetchAll[Tick](ctx, c, "ticks", ticksQuery,
		map[string]any{"pool": strings.ToLower(poolAddress)})
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, "ticks", ticks)
	}
	return ticks, nil
}

const swapsQuery = `query Swaps($pool: String!, $first: Int!, $before: BigInt!) {
  swaps(
    first: $first
    orderBy: timestamp
    orderDirection: desc
    where: { pool: $pool, timestamp_lt: $before }
  ) {
    id
    timestamp
    sender
    recipient
    origin
    amount0
    amount1
    amountUSD
    transaction { id blockNumber timestamp }
  }
}`

// maxTimestamp is above any plausible swap timestamp and seeds the first
// descending page.
const maxTimestamp = "99999999999"

// FetchRecentSwaps returns up to limit swaps, newest first. Recency ordering
// rules out the id_gt cursor, so pages walk backwards on a timestamp_lt
// cursor instead; swaps sharing the exact boundary timestamp of a full page
// can be skipped, which is acceptable for statistical use. Swaps are never
// cached.
func (c *Client) FetchRecentSwaps(ctx context.Context, poolAddress string, limit int) ([]Swap, error) {
	var all []Swap
	before := maxTimestamp
	for len(all) < limit {
		first := c.batchSize
		if remaining := limit - len(all); remaining < first {
			first = remaining
		}

		var out struct {
			Swaps []Swap `json:"swaps"`
		}
		err := c.Execute(ctx, swapsQuery, map[string]any{
			"pool":   strings.ToLower(poolAddress),
			"first":  first,
			"before": before,
		}, &out)
		if err != nil {
			return nil, fmt.Errorf("fetch swaps before %s: %w", before, err)
		}

		all = append(all, out.Swaps...)
		if len(out.Swaps) < first {
			break
		}
		before = out.Swaps[len(out.Swaps)-1].Timestamp
	}
	return all, nil
}

const poolDayDataQuery = `query PoolDayData($pool: String!, $days: Int!) {
  poolDayDatas(
    first: $days
    orderBy: date
    orderDirection: desc
    where: { pool: $pool }
  ) {
    id
    date
    tvlUSD
    volumeUSD
    feesUSD
    txCount
    token0Price
    token1Price
  }
}`

// FetchPoolDayData returns up to days of daily aggregates, newest first.
// Day records are immutable once the day closes, so this is a cached entity.
func (c *Client) FetchPoolDayData(ctx context.Context, poolAddress string, days int) ([]PoolDayData, error) {
	key := fmt.Sprintf("poolDayData:%s:%d", strings.ToLower(poolAddress), days)

	var cached []PoolDayData
	if c.cache != nil && c.cache.Get(ctx, key, "poolDayData", &cached) {
		return cached, nil
	}

	var out struct {
		PoolDayDatas []PoolDayData `json:"poolDayDatas"`
	}
	err := c.Execute(ctx, poolDayDataQuery, map[string]any{
		"pool": strings.ToLower(poolAddress),
		"days": days,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch pool day data: %w", err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, "poolDayData", out.PoolDayDatas)
	}
	return out.PoolDayDatas, nil
}
