package routing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapEngine/internal/chain"
	"swapEngine/internal/dex"
	"swapEngine/internal/model"
	"swapEngine/internal/units"
)

// ProtocolV3 labels legs routed through Uniswap V3 pools.
const ProtocolV3 = "V3"

// DefaultGasOverhead is added to the quoter's estimate to cover the router's own work.
const DefaultGasOverhead uint64 = 50_000

// Mainnet Uniswap V3 deployments.
var (
	MainnetQuoterV2     = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	MainnetFactory      = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	MainnetSwapRouter02 = common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
)

// SwapRouter02 recipient placeholders.
var (
	msgSender   = common.BigToAddress(big.NewInt(1))
	addressThis = common.BigToAddress(big.NewInt(2))
)

// DefaultFeeTiers are the V3 fee tiers in hundredths of a bip.
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

// Backend is the chain access the V3 router needs.
type Backend interface {
	chain.ContractCaller
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// V3Config holds the contract addresses and search space of the V3 router.
type V3Config struct {
	Quoter         common.Address
	Factory        common.Address
	SwapRouter     common.Address
	WrappedNative  common.Address
	FeeTiers       []uint32
	Intermediaries []common.Address
	GasOverhead    uint64
	// QuoteConcurrency bounds parallel quoter calls.
	QuoteConcurrency int
}

// DefaultV3Config returns the mainnet configuration.
func DefaultV3Config() V3Config {
	return V3Config{
		Quoter:           MainnetQuoterV2,
		Factory:          MainnetFactory,
		SwapRouter:       MainnetSwapRouter02,
		WrappedNative:    dex.WETH,
		FeeTiers:         append([]uint32(nil), DefaultFeeTiers...),
		Intermediaries:   []common.Address{dex.WETH, dex.USDC, dex.USDT, dex.DAI},
		GasOverhead:      DefaultGasOverhead,
		QuoteConcurrency: 4,
	}
}

// V3Router quotes candidate single and two-hop paths with QuoterV2 and
// encodes the winner as a SwapRouter02 multicall.
type V3Router struct {
	backend Backend
	tokens  TokenResolver
	cfg     V3Config
	logger  *zap.Logger
}

// NewV3Router builds a router. Zero-valued config fields fall back to DefaultV3Config.
func NewV3Router(backend Backend, tokens TokenResolver, cfg V3Config, logger *zap.Logger) *V3Router {
	def := DefaultV3Config()
	if cfg.Quoter == (common.Address{}) {
		cfg.Quoter = def.Quoter
	}
	if cfg.Factory == (common.Address{}) {
		cfg.Factory = def.Factory
	}
	if cfg.SwapRouter == (common.Address{}) {
		cfg.SwapRouter = def.SwapRouter
	}
	if cfg.WrappedNative == (common.Address{}) {
		cfg.WrappedNative = def.WrappedNative
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = def.FeeTiers
	}
	if cfg.Intermediaries == nil {
		cfg.Intermediaries = def.Intermediaries
	}
	if cfg.GasOverhead == 0 {
		cfg.GasOverhead = def.GasOverhead
	}
	if cfg.QuoteConcurrency <= 0 {
		cfg.QuoteConcurrency = def.QuoteConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V3Router{backend: backend, tokens: tokens, cfg: cfg, logger: logger}
}

// SwapRouter returns the address the payload targets, which is also the approval spender.
func (r *V3Router) SwapRouter() common.Address {
	return r.cfg.SwapRouter
}

type candidate struct {
	tokens []common.Address
	fees   []uint32
	pools  []common.Address
}

type quoted struct {
	candidate
	amountOut   *big.Int
	gasEstimate uint64
}

// Route implements Router.
func (r *V3Router) Route(ctx context.Context, req Request) (*Route, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("route: %w", model.ErrInvalidAmount)
	}
	tokenIn := r.poolToken(req.TokenIn.Address)
	tokenOut := r.poolToken(req.TokenOut.Address)
	if tokenIn == tokenOut {
		return nil, fmt.Errorf("route %s -> %s: %w", req.TokenIn.Label(), req.TokenOut.Label(), model.ErrNoRouteFound)
	}

	candidates, err := r.candidates(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("route %s -> %s: no pools: %w", req.TokenIn.Label(), req.TokenOut.Label(), model.ErrNoRouteFound)
	}

	best, err := r.bestQuote(ctx, candidates, req.AmountIn)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("route %s -> %s: all quotes failed: %w", req.TokenIn.Label(), req.TokenOut.Label(), model.ErrNoRouteFound)
	}

	minOut := units.MinimumOut(best.amountOut, req.SlippageBps)
	payload, err := r.payload(req, best.candidate, minOut)
	if err != nil {
		return nil, err
	}

	gasPrice, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	impact := model.Unknown
	if sqrtPrices, err := r.sqrtPrices(ctx, best.pools); err != nil {
		r.logger.Debug("price impact unavailable", zap.Error(err))
	} else if pct, err := priceImpactPercent(req.AmountIn, best.amountOut, best.tokens, sqrtPrices); err != nil {
		r.logger.Debug("price impact unavailable", zap.Error(err))
	} else {
		impact = pct
	}

	path := make([]model.TokenDescriptor, 0, len(best.tokens))
	for _, token := range best.tokens {
		path = append(path, r.tokens.Resolve(ctx, token))
	}

	return &Route{
		AmountOut:  best.amountOut,
		MinimumOut: minOut,
		Legs: []model.RouteLeg{{
			Protocol:  ProtocolV3,
			TokenPath: path,
			PoolFees:  append([]uint32(nil), best.fees...),
			Pools:     append([]common.Address(nil), best.pools...),
		}},
		GasEstimate:        best.gasEstimate + r.cfg.GasOverhead,
		GasPrice:           gasPrice,
		PriceImpactPercent: impact,
		Payload:            payload,
	}, nil
}

func (r *V3Router) poolToken(address common.Address) common.Address {
	if model.IsNative(address) {
		return r.cfg.WrappedNative
	}
	return address
}

type poolKey struct {
	a, b common.Address
	fee  uint32
}

// candidates lists direct paths first, then two-hop paths through each intermediary.
func (r *V3Router) candidates(ctx context.Context, tokenIn, tokenOut common.Address) ([]candidate, error) {
	factoryABI, err := dex.V3FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}

	pools := make(map[poolKey]common.Address)
	lookup := func(a, b common.Address, fee uint32) (common.Address, error) {
		key := poolKey{a: a, b: b, fee: fee}
		if pool, ok := pools[key]; ok {
			return pool, nil
		}
		pool, err := r.getPool(ctx, factoryABI, a, b, fee)
		if err != nil {
			return common.Address{}, err
		}
		pools[key] = pool
		pools[poolKey{a: b, b: a, fee: fee}] = pool
		return pool, nil
	}

	var out []candidate
	for _, fee := range r.cfg.FeeTiers {
		pool, err := lookup(tokenIn, tokenOut, fee)
		if err != nil {
			return nil, err
		}
		if pool != (common.Address{}) {
			out = append(out, candidate{
				tokens: []common.Address{tokenIn, tokenOut},
				fees:   []uint32{fee},
				pools:  []common.Address{pool},
			})
		}
	}

	for _, mid := range r.cfg.Intermediaries {
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		for _, fee1 := range r.cfg.FeeTiers {
			pool1, err := lookup(tokenIn, mid, fee1)
			if err != nil {
				return nil, err
			}
			if pool1 == (common.Address{}) {
				continue
			}
			for _, fee2 := range r.cfg.FeeTiers {
				pool2, err := lookup(mid, tokenOut, fee2)
				if err != nil {
					return nil, err
				}
				if pool2 == (common.Address{}) {
					continue
				}
				out = append(out, candidate{
					tokens: []common.Address{tokenIn, mid, tokenOut},
					fees:   []uint32{fee1, fee2},
					pools:  []common.Address{pool1, pool2},
				})
			}
		}
	}
	return out, nil
}

func (r *V3Router) getPool(ctx context.Context, factoryABI abiPacker, a, b common.Address, fee uint32) (common.Address, error) {
	data, err := factoryABI.Pack("getPool", a, b, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPool: %w", err)
	}
	resp, err := call(ctx, r.backend, r.cfg.Factory, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool %s/%s/%d: %w", a.Hex(), b.Hex(), fee, err)
	}
	values, err := factoryABI.Unpack("getPool", resp)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getPool: %w", err)
	}
	if len(values) == 0 {
		return common.Address{}, fmt.Errorf("unpack getPool: empty result")
	}
	pool, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPool unexpected type %T", values[0])
	}
	return pool, nil
}

// bestQuote quotes every candidate and keeps the highest output. Ties keep the
// earlier candidate, so direct paths win over equal two-hop paths.
func (r *V3Router) bestQuote(ctx context.Context, candidates []candidate, amountIn *big.Int) (*quoted, error) {
	quoterABI, err := dex.QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}

	results := make([]*quoted, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.QuoteConcurrency)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			q, err := r.quote(gctx, quoterABI, cand, amountIn)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Debug("candidate quote failed",
					zap.Uint32s("fees", cand.fees),
					zap.Int("hops", len(cand.fees)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("quote candidates: %w", err)
	}

	var best *quoted
	for _, q := range results {
		if q == nil || q.amountOut.Sign() <= 0 {
			continue
		}
		if best == nil || q.amountOut.Cmp(best.amountOut) > 0 {
			best = q
		}
	}
	return best, nil
}

func (r *V3Router) quote(ctx context.Context, quoterABI abiPacker, cand candidate, amountIn *big.Int) (*quoted, error) {
	path, err := EncodePath(cand.tokens, cand.fees)
	if err != nil {
		return nil, err
	}
	data, err := quoterABI.Pack("quoteExactInput", path, amountIn)
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInput: %w", err)
	}
	resp, err := call(ctx, r.backend, r.cfg.Quoter, data)
	if err != nil {
		return nil, fmt.Errorf("quoteExactInput: %w", err)
	}
	values, err := quoterABI.Unpack("quoteExactInput", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack quoteExactInput: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("quoteExactInput returned %d values", len(values))
	}
	amountOut, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quoteExactInput amountOut type %T", values[0])
	}
	gas, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quoteExactInput gasEstimate type %T", values[3])
	}
	return &quoted{candidate: cand, amountOut: amountOut, gasEstimate: gas.Uint64()}, nil
}

func (r *V3Router) sqrtPrices(ctx context.Context, pools []common.Address) ([]*big.Int, error) {
	out := make([]*big.Int, len(pools))
	g, gctx := errgroup.WithContext(ctx)
	for i, pool := range pools {
		i, pool := i, pool
		g.Go(func() error {
			sqrt, _, err := dex.FetchSlot0(gctx, r.backend, pool)
			if err != nil {
				return err
			}
			out[i] = sqrt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// payload encodes multicall(deadline, [exactInput, unwrapWETH9?]).
func (r *V3Router) payload(req Request, cand candidate, minOut *big.Int) (model.ExecutionPayload, error) {
	routerABI, err := dex.SwapRouter02ABI()
	if err != nil {
		return model.ExecutionPayload{}, fmt.Errorf("parse router abi: %w", err)
	}
	path, err := EncodePath(cand.tokens, cand.fees)
	if err != nil {
		return model.ExecutionPayload{}, err
	}

	unwrap := req.TokenOut.IsNative()
	recipient := req.Recipient
	switch {
	case unwrap:
		recipient = addressThis
	case recipient == (common.Address{}):
		recipient = msgSender
	}

	params := struct {
		Path             []byte
		Recipient        common.Address
		AmountIn         *big.Int
		AmountOutMinimum *big.Int
	}{
		Path:             path,
		Recipient:        recipient,
		AmountIn:         req.AmountIn,
		AmountOutMinimum: minOut,
	}
	swapCall, err := routerABI.Pack("exactInput", params)
	if err != nil {
		return model.ExecutionPayload{}, fmt.Errorf("pack exactInput: %w", err)
	}
	calls := [][]byte{swapCall}
	if unwrap {
		unwrapCall, err := routerABI.Pack("unwrapWETH9", minOut)
		if err != nil {
			return model.ExecutionPayload{}, fmt.Errorf("pack unwrapWETH9: %w", err)
		}
		calls = append(calls, unwrapCall)
	}

	deadline := big.NewInt(req.Deadline.Unix())
	data, err := routerABI.Pack("multicall", deadline, calls)
	if err != nil {
		return model.ExecutionPayload{}, fmt.Errorf("pack multicall: %w", err)
	}

	value := big.NewInt(0)
	if req.TokenIn.IsNative() {
		value = new(big.Int).Set(req.AmountIn)
	}
	return model.ExecutionPayload{
		To:       r.cfg.SwapRouter,
		Calldata: hexutil.Encode(data),
		Value:    value.String(),
	}, nil
}
