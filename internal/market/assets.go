package market

import "strings"

var assetIDs = map[string]string{
	"ETH":  "ethereum",
	"WETH": "weth",
	"BTC":  "bitcoin",
	"WBTC": "wrapped-bitcoin",
	"USDC": "usd-coin",
	"USDT": "tether",
	"DAI":  "dai",
	"UNI":  "uniswap",
	"LINK": "chainlink",
	"AAVE": "aave",
}

// LookupAssetID maps a ticker symbol to its price-history asset id.
// Unknown symbols are lower-cased and passed through.
func LookupAssetID(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if id, ok := assetIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}
