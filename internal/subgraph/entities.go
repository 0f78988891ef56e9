package subgraph

// Entity shapes mirror the Uniswap V3 subgraph schema. The Graph returns
// all numeric fields as decimal strings; they stay strings here and are
// parsed at the point of use so a single malformed record cannot poison a
// whole page.

// Token is one side of a pool's pair.
type Token struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals string `json:"decimals"`
}

// Pool is the top-level pool record.
type Pool struct {
	ID                  string `json:"id"`
	Token0              Token  `json:"token0"`
	Token1              Token  `json:"token1"`
	FeeTier             string `json:"feeTier"`
	Liquidity           string `json:"liquidity"`
	SqrtPrice           string `json:"sqrtPrice"`
	Token0Price         string `json:"token0Price"`
	Token1Price         string `json:"token1Price"`
	TotalValueLockedUSD string `json:"totalValueLockedUSD"`
	VolumeUSD           string `json:"volumeUSD"`
	TxCount             string `json:"txCount"`
	CreatedAtTimestamp  string `json:"createdAtTimestamp"`
}

// TickRef is a tick referenced from a position boundary.
type TickRef struct {
	TickIdx string `json:"tickIdx"`
}

// TransactionRef carries the fields of a swap's enclosing transaction that
// the behavioral analysis needs.
type TransactionRef struct {
	ID          string `json:"id"`
	BlockNumber string `json:"blockNumber"`
	Timestamp   string `json:"timestamp"`
}

// Position is an open LP position.
type Position struct {
	ID              string         `json:"id"`
	Owner           string         `json:"owner"`
	Liquidity       string         `json:"liquidity"`
	DepositedToken0 string         `json:"depositedToken0"`
	DepositedToken1 string         `json:"depositedToken1"`
	WithdrawnToken0 string         `json:"withdrawnToken0"`
	WithdrawnToken1 string         `json:"withdrawnToken1"`
	TickLower       TickRef        `json:"tickLower"`
	TickUpper       TickRef        `json:"tickUpper"`
	Transaction     TransactionRef `json:"transaction"`
}

// Tick is an initialized tick in the pool's liquidity distribution.
type Tick struct {
	ID             string `json:"id"`
	TickIdx        string `json:"tickIdx"`
	LiquidityGross string `json:"liquidityGross"`
	LiquidityNet   string `json:"liquidityNet"`
}

// Swap is a single swap event.
type Swap struct {
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Sender      string         `json:"sender"`
	Recipient   string         `json:"recipient"`
	Origin      string         `json:"origin"`
	Amount0     string         `json:"amount0"`
	Amount1     string         `json:"amount1"`
	AmountUSD   string         `json:"amountUSD"`
	Transaction TransactionRef `json:"transaction"`
}

// PoolDayData is one day of aggregated pool activity.
type PoolDayData struct {
	ID          string `json:"id"`
	Date        int64  `json:"date"`
	TVLUSD      string `json:"tvlUSD"`
	VolumeUSD   string `json:"volumeUSD"`
	FeesUSD     string `json:"feesUSD"`
	TxCount     string `json:"txCount"`
	Token0Price string `json:"token0Price"`
	Token1Price string `json:"token1Price"`
}

func (p Position) recordID() string { return p.ID }
func (t Tick) recordID() string     { return t.ID }
func (s Swap) recordID() string     { return s.ID }
