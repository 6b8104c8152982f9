// Package quote turns trade intents into executable route quotes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/routing"
	"swapEngine/internal/units"
)

// DefaultSlippagePercent applies when an intent carries no slippage.
var DefaultSlippagePercent = decimal.RequireFromString("0.5")

// Options tunes an Engine.
type Options struct {
	// DefaultSlippagePercent is used when an intent has no SlippageBps. Zero means DefaultSlippagePercent.
	DefaultSlippagePercent decimal.Decimal
	Logger                 *zap.Logger
	Metrics                *observability.Metrics
	Now                    func() time.Time
}

// Engine validates intents, resolves tokens and delegates pricing to a Router.
type Engine struct {
	tokens             routing.TokenResolver
	router             routing.Router
	defaultSlippageBps uint32
	logger             *zap.Logger
	metrics            *observability.Metrics
	now                func() time.Time
}

// NewEngine builds an Engine.
func NewEngine(tokens routing.TokenResolver, router routing.Router, opts Options) (*Engine, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token resolver is nil")
	}
	if router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	percent := opts.DefaultSlippagePercent
	if percent.IsZero() {
		percent = DefaultSlippagePercent
	}
	bps, err := units.PercentToBps(percent)
	if err != nil {
		return nil, fmt.Errorf("default slippage: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tokens:             tokens,
		router:             router,
		defaultSlippageBps: bps,
		logger:             logger,
		metrics:            opts.Metrics,
		now:                now,
	}, nil
}

// DefaultSlippageBps returns the tolerance applied to intents without one.
func (e *Engine) DefaultSlippageBps() uint32 {
	return e.defaultSlippageBps
}

// GetQuote prices an exact-input trade. Input validation happens before any RPC.
func (e *Engine) GetQuote(ctx context.Context, intent model.TradeIntent) (*model.RouteQuote, error) {
	start := e.now()
	quote, err := e.getQuote(ctx, intent)
	e.metrics.RecordQuote(quoteResult(err), e.now().Sub(start))
	return quote, err
}

func (e *Engine) getQuote(ctx context.Context, intent model.TradeIntent) (*model.RouteQuote, error) {
	if intent.FromToken == intent.ToToken {
		return nil, fmt.Errorf("%w: from and to token are both %s", model.ErrInvalidAmount, intent.FromToken.Hex())
	}
	slippage := e.defaultSlippageBps
	if intent.SlippageBps != nil {
		slippage = *intent.SlippageBps
	}
	if slippage > model.MaxSlippageBps {
		return nil, fmt.Errorf("%w: slippage %d bps exceeds %d", model.ErrInvalidAmount, slippage, model.MaxSlippageBps)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(intent.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAmount, intent.Amount)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", model.ErrInvalidAmount, intent.Amount)
	}

	fromToken := e.tokens.Resolve(ctx, intent.FromToken)
	toToken := e.tokens.Resolve(ctx, intent.ToToken)

	amountIn, err := units.ParseUnits(intent.Amount, fromToken.Decimals)
	if err != nil {
		return nil, err
	}

	deadlineSeconds := intent.DeadlineSeconds
	if deadlineSeconds == 0 {
		deadlineSeconds = model.DefaultDeadlineSeconds
	}
	deadline := e.now().Add(time.Duration(deadlineSeconds) * time.Second).UTC().Truncate(time.Second)

	route, err := e.router.Route(ctx, routing.Request{
		TokenIn:     fromToken,
		TokenOut:    toToken,
		AmountIn:    amountIn,
		SlippageBps: slippage,
		Deadline:    deadline,
		Recipient:   intent.Recipient,
	})
	if err != nil {
		if errors.Is(err, model.ErrNoRouteFound) {
			return nil, err
		}
		return nil, fmt.Errorf("route %s -> %s: %w", fromToken.Label(), toToken.Label(), err)
	}
	if route == nil || route.AmountOut == nil || route.AmountOut.Sign() <= 0 {
		return nil, fmt.Errorf("route %s -> %s: %w", fromToken.Label(), toToken.Label(), model.ErrNoRouteFound)
	}

	minOut := route.MinimumOut
	if minOut == nil {
		minOut = units.MinimumOut(route.AmountOut, slippage)
	}
	gasPrice := ""
	if route.GasPrice != nil {
		gasPrice = route.GasPrice.String()
	}

	quote := &model.RouteQuote{
		FromToken:          fromToken,
		ToToken:            toToken,
		AmountIn:           units.FormatUnits(amountIn, fromToken.Decimals),
		AmountInRaw:        amountIn.String(),
		ExpectedOutput:     units.FormatUnits(route.AmountOut, toToken.Decimals),
		ExpectedOutputRaw:  route.AmountOut.String(),
		MinimumOutputRaw:   minOut.String(),
		RouteLegs:          route.Legs,
		EstimatedGasUnits:  route.GasEstimate,
		GasPriceWei:        gasPrice,
		PriceImpactPercent: route.PriceImpactPercent,
		SlippageBps:        slippage,
		Deadline:           deadline,
		Payload:            route.Payload,
	}

	e.logger.Debug("quote ready",
		zap.String("from", fromToken.Label()),
		zap.String("to", toToken.Label()),
		zap.String("amount_in", quote.AmountIn),
		zap.String("expected_out", quote.ExpectedOutput),
		zap.Uint32("slippage_bps", slippage),
	)
	return quote, nil
}

func quoteResult(err error) string {
	switch {
	case err == nil:
		return observability.QuoteOK
	case errors.Is(err, model.ErrNoRouteFound):
		return observability.QuoteNoRoute
	case errors.Is(err, model.ErrInvalidAmount):
		return observability.QuoteInvalid
	default:
		return observability.QuoteError
	}
}
