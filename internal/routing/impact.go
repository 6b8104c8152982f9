package routing

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// midPrice returns the raw-unit price of tokenOut per tokenIn implied by a pool's sqrtPriceX96.
func midPrice(sqrtPriceX96 *big.Int, tokenIn, tokenOut common.Address) (*big.Rat, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("invalid sqrt price")
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	// token1 per token0
	price := new(big.Rat).SetFrac(squared, q192)
	if bytes.Compare(tokenIn.Bytes(), tokenOut.Bytes()) > 0 {
		price.Inv(price)
	}
	return price, nil
}

// priceImpactPercent compares the executed output with the output at mid prices
// and returns the shortfall as a percentage with four decimals.
func priceImpactPercent(amountIn, amountOut *big.Int, tokens []common.Address, sqrtPrices []*big.Int) (string, error) {
	if len(sqrtPrices) != len(tokens)-1 {
		return "", fmt.Errorf("price impact: %d prices for %d hops", len(sqrtPrices), len(tokens)-1)
	}
	noImpact := new(big.Rat).SetInt(amountIn)
	for i, sqrt := range sqrtPrices {
		price, err := midPrice(sqrt, tokens[i], tokens[i+1])
		if err != nil {
			return "", fmt.Errorf("price impact hop %d: %w", i, err)
		}
		noImpact.Mul(noImpact, price)
	}
	if noImpact.Sign() == 0 {
		return "", fmt.Errorf("price impact: zero mid output")
	}
	shortfall := new(big.Rat).Sub(noImpact, new(big.Rat).SetInt(amountOut))
	impact := new(big.Rat).Quo(shortfall, noImpact)
	impact.Mul(impact, big.NewRat(100, 1))
	return impact.FloatString(4), nil
}
