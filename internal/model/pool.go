package model

import "github.com/ethereum/go-ethereum/common"

// Unknown marks an analytics value the indexer could not provide.
const Unknown = "unknown"

// PoolSnapshot combines on-chain pool state with indexer analytics.
type PoolSnapshot struct {
	Address      common.Address  `json:"address"`
	Token0       TokenDescriptor `json:"token0"`
	Token1       TokenDescriptor `json:"token1"`
	FeeTier      uint32          `json:"fee_tier"`
	FeePercent   string          `json:"fee"`
	TickSpacing  int32           `json:"tick_spacing"`
	Liquidity    string          `json:"liquidity"`
	SqrtPriceX96 string          `json:"sqrt_price_x96"`
	CurrentTick  int32           `json:"tick"`
	Reserve0     string          `json:"reserve0,omitempty"`
	Reserve1     string          `json:"reserve1,omitempty"`

	TotalValueLockedUSD string `json:"tvl_usd"`
	Volume24hUSD        string `json:"volume_24h"`
	Fees24hUSD          string `json:"fees_usd_24h"`
}

// PoolToken is the token shape returned by the indexer.
type PoolToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

// TopPool is a ranked pool record sourced from the indexer.
type TopPool struct {
	ID                  string    `json:"id"`
	Token0              PoolToken `json:"token0"`
	Token1              PoolToken `json:"token1"`
	FeeTier             string    `json:"feeTier"`
	Liquidity           string    `json:"liquidity"`
	VolumeUSD           string    `json:"volumeUSD"`
	FeesUSD             string    `json:"feesUSD"`
	TxCount             string    `json:"txCount"`
	TotalValueLockedUSD string    `json:"totalValueLockedUSD"`
	Token0Price         string    `json:"token0Price"`
	Token1Price         string    `json:"token1Price"`
}
