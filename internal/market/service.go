// Package market serves price history, pool analytics and pool rankings.
package market

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/dex"
	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/ratelimit"
	"swapEngine/internal/routing"
	"swapEngine/internal/units"
)

// Config configures the upstream data services.
type Config struct {
	PriceBaseURL   string
	PriceAPIKey    string
	SubgraphURL    string
	SubgraphAPIKey string
	// MinInterval spaces every upstream HTTP call. Zero means ratelimit.DefaultMinInterval.
	MinInterval time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Service combines on-chain reads with the price-history and indexer APIs.
// All HTTP calls share one rate limiter.
type Service struct {
	caller   chain.ContractCaller
	tokens   routing.TokenResolver
	prices   *PriceClient
	subgraph *SubgraphClient
	logger   *zap.Logger
}

// NewService builds a Service. caller and tokens may be nil when AnalyzeLiquidity is unused.
func NewService(caller chain.ContractCaller, tokens routing.TokenResolver, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	priceBase := cfg.PriceBaseURL
	if priceBase == "" {
		priceBase = DefaultPriceBaseURL
	}
	subgraphURL := cfg.SubgraphURL
	if subgraphURL == "" {
		subgraphURL = DefaultSubgraphURL
	}

	var observer ratelimit.Observer
	if obs := metrics.RateLimitObserver(); obs != nil {
		observer = obs
	}
	limiter := ratelimit.New(cfg.MinInterval, observer)

	return &Service{
		caller: caller,
		tokens: tokens,
		prices: &PriceClient{
			upstream: upstream{name: "coingecko", httpClient: httpClient, limiter: limiter, metrics: metrics},
			baseURL:  priceBase,
			apiKey:   cfg.PriceAPIKey,
		},
		subgraph: &SubgraphClient{
			upstream: upstream{name: "subgraph", httpClient: httpClient, limiter: limiter, metrics: metrics},
			endpoint: subgraphURL,
			apiKey:   cfg.SubgraphAPIKey,
		},
		logger: logger,
	}
}

// GetHistoricalPrices returns daily prices, oldest first.
func (s *Service) GetHistoricalPrices(ctx context.Context, assetID, currency string, days int) ([]model.PricePoint, error) {
	return s.prices.GetHistoricalPrices(ctx, assetID, currency, days)
}

// GetTopPools returns the top pools by orderField, descending.
func (s *Service) GetTopPools(ctx context.Context, count int, orderField string) ([]model.TopPool, error) {
	return s.subgraph.TopPools(ctx, count, orderField)
}

// LookupAssetID maps a ticker symbol to its price-history asset id.
func (s *Service) LookupAssetID(symbol string) string {
	return LookupAssetID(symbol)
}

// AnalyzeLiquidity reads a pool's on-chain state and enriches it with indexer analytics.
// On-chain failures are returned; indexer failures leave the analytics fields as model.Unknown.
func (s *Service) AnalyzeLiquidity(ctx context.Context, pool common.Address) (*model.PoolSnapshot, error) {
	if s.caller == nil || s.tokens == nil {
		return nil, fmt.Errorf("analyze liquidity: chain access not configured")
	}
	state, err := dex.FetchPoolState(ctx, s.caller, pool)
	if err != nil {
		return nil, fmt.Errorf("analyze liquidity %s: %w", pool.Hex(), err)
	}

	token0 := s.tokens.Resolve(ctx, state.Token0)
	token1 := s.tokens.Resolve(ctx, state.Token1)

	snapshot := &model.PoolSnapshot{
		Address:             pool,
		Token0:              token0,
		Token1:              token1,
		FeeTier:             state.Fee,
		FeePercent:          feePercent(state.Fee),
		TickSpacing:         state.TickSpacing,
		Liquidity:           state.Liquidity.String(),
		SqrtPriceX96:        state.SqrtPriceX96.String(),
		CurrentTick:         state.Tick,
		Reserve0:            s.reserve(ctx, token0, pool),
		Reserve1:            s.reserve(ctx, token1, pool),
		TotalValueLockedUSD: model.Unknown,
		Volume24hUSD:        model.Unknown,
		Fees24hUSD:          model.Unknown,
	}

	analytics, err := s.subgraph.PoolAnalytics(ctx, pool)
	if err != nil {
		s.logger.Warn("pool analytics unavailable", zap.String("pool", pool.Hex()), zap.Error(err))
		return snapshot, nil
	}
	snapshot.TotalValueLockedUSD = analytics.TotalValueLockedUSD
	snapshot.Volume24hUSD = analytics.Volume24hUSD
	snapshot.Fees24hUSD = analytics.Fees24hUSD
	return snapshot, nil
}

func (s *Service) reserve(ctx context.Context, token model.TokenDescriptor, pool common.Address) string {
	balance, err := dex.BalanceOf(ctx, s.caller, token.Address, pool)
	if err != nil {
		s.logger.Debug("pool balance unavailable", zap.String("token", token.Address.Hex()), zap.Error(err))
		return model.Unknown
	}
	return units.FormatUnits(balance, token.Decimals)
}

// feePercent renders a fee in hundredths of a bip as a percentage: 3000 -> "0.3".
func feePercent(fee uint32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(fee)), -4).String()
}
