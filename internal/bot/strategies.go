package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapEngine/internal/model"
)

func (e *Engine) priceThreshold(ctx context.Context, s PriceThreshold) (model.Decision, *model.SwapReceipt, error) {
	quote, err := e.quoter.GetQuote(ctx, model.TradeIntent{
		FromToken: s.Base,
		ToToken:   s.Quote,
		Amount:    "1",
	})
	if err != nil {
		return model.DecisionNone, nil, fmt.Errorf("price quote: %w", err)
	}
	price, err := decimal.NewFromString(quote.ExpectedOutput)
	if err != nil {
		return model.DecisionNone, nil, fmt.Errorf("parse quoted price %q: %w", quote.ExpectedOutput, err)
	}
	e.sink(fmt.Sprintf("Current price: 1 %s = %s %s", quote.FromToken.Label(), price, quote.ToToken.Label()))

	if s.MinPrice != nil && price.GreaterThanOrEqual(*s.MinPrice) {
		e.sink(fmt.Sprintf("Price %s >= %s. Selling %s", price, s.MinPrice, s.AmountPerTrade))
		receipt, err := e.trade(ctx, model.TradeIntent{
			FromToken: s.Base,
			ToToken:   s.Quote,
			Amount:    s.AmountPerTrade.String(),
		})
		return model.DecisionSell, receipt, err
	}
	if s.MaxPrice != nil && price.LessThanOrEqual(*s.MaxPrice) {
		e.sink(fmt.Sprintf("Price %s <= %s. Buying with %s", price, s.MaxPrice, s.AmountPerTrade))
		receipt, err := e.trade(ctx, model.TradeIntent{
			FromToken: s.Quote,
			ToToken:   s.Base,
			Amount:    s.AmountPerTrade.String(),
		})
		return model.DecisionBuy, receipt, err
	}

	e.sink("Price does not meet threshold conditions. Waiting")
	return model.DecisionNone, nil, nil
}

const dcaStateKeyPrefix = "dca:"

func (e *Engine) dollarCostAverage(ctx context.Context, s DollarCostAverage, now time.Time) (model.Decision, *model.SwapReceipt, error) {
	now = now.UTC()
	if !slices.Contains(s.days(), now.Day()) {
		e.sink(fmt.Sprintf("Today (%d) is not a trading day. Skipping", now.Day()))
		return model.DecisionSkip, nil, nil
	}
	if now.Hour() != s.hour() {
		e.sink(fmt.Sprintf("Current hour (%d) is not trading hour (%d). Skipping", now.Hour(), s.hour()))
		return model.DecisionSkip, nil, nil
	}

	window := now.Truncate(time.Hour).Format("2006-01-02T15")
	last, err := e.loadWindow(ctx, s)
	if err != nil {
		return model.DecisionSkip, nil, err
	}
	if last == window {
		e.sink(fmt.Sprintf("Already traded in window %s. Skipping", window))
		return model.DecisionSkip, nil, nil
	}

	// The window is consumed once a trade is attempted so a failure is not retried on the next tick.
	e.saveWindow(ctx, s, window)

	e.sink(fmt.Sprintf("Executing scheduled DCA trade: %s %s to %s", s.AmountPerTrade, s.From.Hex(), s.To.Hex()))
	receipt, err := e.trade(ctx, model.TradeIntent{
		FromToken: s.From,
		ToToken:   s.To,
		Amount:    s.AmountPerTrade.String(),
	})
	return model.DecisionBuy, receipt, err
}

func dcaStateKey(s DollarCostAverage) string {
	return dcaStateKeyPrefix + s.From.Hex() + ":" + s.To.Hex()
}

func (e *Engine) loadWindow(ctx context.Context, s DollarCostAverage) (string, error) {
	if e.windowLoaded || e.state == nil {
		return e.lastWindow, nil
	}
	value, _, err := e.state.LoadState(ctx, dcaStateKey(s))
	if err != nil {
		return "", fmt.Errorf("load dca window: %w", err)
	}
	e.lastWindow = value
	e.windowLoaded = true
	return value, nil
}

func (e *Engine) saveWindow(ctx context.Context, s DollarCostAverage, window string) {
	e.lastWindow = window
	e.windowLoaded = true
	if e.state == nil {
		return
	}
	if err := e.state.SaveState(ctx, dcaStateKey(s), window); err != nil {
		e.logger.Error("save dca window", zap.String("window", window), zap.Error(err))
	}
}

func (e *Engine) movingAverage(ctx context.Context, s MovingAverageCrossover) (model.Decision, *model.SwapReceipt, error) {
	short, long := s.periods()
	points, err := e.prices.GetHistoricalPrices(ctx, s.AssetID, s.currency(), long+1)
	if err != nil {
		return model.DecisionSkip, nil, err
	}
	if len(points) < long+1 {
		return model.DecisionSkip, nil, fmt.Errorf("%w: %s has %d points, need %d",
			model.ErrInsufficientHistory, s.AssetID, len(points), long+1)
	}

	// Newest first.
	recent := make([]decimal.Decimal, 0, long+1)
	for i := len(points) - 1; i >= len(points)-long-1; i-- {
		recent = append(recent, points[i].Price)
	}

	shortMA := average(recent[:short])
	longMA := average(recent[:long])
	prevShortMA := average(recent[1 : short+1])
	prevLongMA := average(recent[1 : long+1])
	e.sink(fmt.Sprintf("Short MA (%d days): %s, long MA (%d days): %s", short, shortMA.StringFixed(6), long, longMA.StringFixed(6)))

	above := shortMA.GreaterThan(longMA)
	wasAbove := prevShortMA.GreaterThan(prevLongMA)
	switch {
	case above && !wasAbove:
		e.sink("Bullish crossover detected. Executing buy")
		receipt, err := e.trade(ctx, model.TradeIntent{
			FromToken: s.Quote,
			ToToken:   s.Base,
			Amount:    s.AmountPerTrade.String(),
		})
		return model.DecisionBuy, receipt, err
	case !above && wasAbove:
		e.sink("Bearish crossover detected. Executing sell")
		receipt, err := e.trade(ctx, model.TradeIntent{
			FromToken: s.Base,
			ToToken:   s.Quote,
			Amount:    s.AmountPerTrade.String(),
		})
		return model.DecisionSell, receipt, err
	default:
		e.sink("No crossover detected. Holding position")
		return model.DecisionNone, nil, nil
	}
}

func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// IsSkip reports whether err only means the tick had nothing to act on.
func IsSkip(err error) bool {
	return errors.Is(err, model.ErrInsufficientHistory) || errors.Is(err, model.ErrPriceHistoryUnavailable)
}
