package dex

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/model"
)

// Mainnet addresses of well-known tokens.
var (
	WETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	DAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	UNI  = common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
)

// KnownTokens returns descriptors for the native asset and common mainnet tokens.
func KnownTokens() []model.TokenDescriptor {
	return []model.TokenDescriptor{
		{Address: model.NativeTokenAddress, Decimals: model.NativeDecimals, Symbol: "ETH"},
		{Address: WETH, Decimals: 18, Symbol: "WETH"},
		{Address: USDC, Decimals: 6, Symbol: "USDC"},
		{Address: USDT, Decimals: 6, Symbol: "USDT"},
		{Address: DAI, Decimals: 18, Symbol: "DAI"},
		{Address: UNI, Decimals: 18, Symbol: "UNI"},
	}
}

// TokenRegistry caches token descriptors by address.
type TokenRegistry struct {
	caller chain.ContractCaller
	logger *zap.Logger

	mu   sync.RWMutex
	data map[common.Address]model.TokenDescriptor
}

// NewTokenRegistry builds an empty registry reading metadata through caller.
func NewTokenRegistry(caller chain.ContractCaller, logger *zap.Logger) *TokenRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenRegistry{
		caller: caller,
		logger: logger,
		data:   make(map[common.Address]model.TokenDescriptor),
	}
}

// Seed stores descriptors without touching the chain.
func (r *TokenRegistry) Seed(descs ...model.TokenDescriptor) {
	r.mu.Lock()
	for _, desc := range descs {
		r.data[desc.Address] = desc
	}
	r.mu.Unlock()
}

// Get returns a cached descriptor.
func (r *TokenRegistry) Get(address common.Address) (model.TokenDescriptor, bool) {
	r.mu.RLock()
	desc, ok := r.data[address]
	r.mu.RUnlock()
	return desc, ok
}

// Resolve returns the descriptor for address, fetching it on a cache miss.
// When decimals cannot be read the token is assumed to have 18 decimals; that
// guess is not cached so a later call can still succeed.
func (r *TokenRegistry) Resolve(ctx context.Context, address common.Address) model.TokenDescriptor {
	if desc, ok := r.Get(address); ok {
		return desc
	}
	if model.IsNative(address) {
		desc := model.TokenDescriptor{Address: model.NativeTokenAddress, Decimals: model.NativeDecimals, Symbol: "ETH"}
		r.Seed(desc)
		return desc
	}

	desc, err := FetchTokenMeta(ctx, r.caller, address, r.logger)
	if err != nil {
		r.logger.Warn("token decimals fetch failed, assuming default",
			zap.String("token", address.Hex()),
			zap.Uint8("decimals", model.DefaultDecimals),
			zap.Error(err),
		)
		return model.TokenDescriptor{Address: address, Decimals: model.DefaultDecimals}
	}
	r.Seed(desc)
	return desc
}

// LookupSymbol maps a well-known symbol (case-insensitive) to its address.
func LookupSymbol(symbol string) (common.Address, bool) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	for _, desc := range KnownTokens() {
		if desc.Symbol == upper {
			return desc.Address, true
		}
	}
	return common.Address{}, false
}
