package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapEngine/internal/bot"
	"swapEngine/internal/config"
	"swapEngine/internal/market"
)

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{chain: true, signer: true, market: true, storage: true})
	if err != nil {
		return err
	}
	defer a.Close()

	strategy, err := buildStrategy(a.cfg.Bot)
	if err != nil {
		return err
	}
	if a.signer == nil {
		a.logger.Warn("no private key configured; trades will fail with no signer available")
	}

	engine, err := bot.NewEngine(bot.Config{
		Strategy: strategy,
		Interval: a.cfg.Bot.Interval,
		Quoter:   a.quotes,
		Executor: a.executor,
		Prices:   a.market,
		State:    a.state,
		Journal:  a.journal,
		Logger:   a.logger,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}

	if a.cfg.Bot.Once {
		record := engine.RunOnce(ctx)
		return writeJSON(cmd.OutOrStdout(), record)
	}

	ctx, cancel := withRunLimit(ctx, a.cfg.Bot.Duration)
	defer cancel()

	a.serveMetrics(ctx, a.cfg.MetricsAddr)
	a.logger.Info("bot start",
		zap.String("strategy", strategy.Name()),
		zap.Duration("interval", a.cfg.Bot.Interval),
		zap.Duration("duration", a.cfg.Bot.Duration),
	)
	engine.Start()
	<-ctx.Done()
	engine.Stop()
	engine.Wait()
	a.logger.Info("bot stopped")
	return nil
}

// withRunLimit bounds ctx by d. A non-positive d leaves ctx unbounded.
func withRunLimit(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func buildStrategy(cfg config.BotConfig) (bot.Strategy, error) {
	amount, err := requiredDecimal("amount", cfg.Amount)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case bot.NamePriceThreshold:
		base, err := parseToken(cfg.Base)
		if err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
		quote, err := parseToken(cfg.Quote)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		minPrice, err := optionalDecimal("min-price", cfg.MinPrice)
		if err != nil {
			return nil, err
		}
		maxPrice, err := optionalDecimal("max-price", cfg.MaxPrice)
		if err != nil {
			return nil, err
		}
		return bot.PriceThreshold{
			Base:           base,
			Quote:          quote,
			MinPrice:       minPrice,
			MaxPrice:       maxPrice,
			AmountPerTrade: amount,
		}, nil

	case bot.NameDollarCostAverage:
		from, err := parseToken(cfg.Quote)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		to, err := parseToken(cfg.Base)
		if err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
		s := bot.DollarCostAverage{
			From:           from,
			To:             to,
			AmountPerTrade: amount,
			TradingDays:    cfg.TradingDays,
		}
		if cfg.TradingHour >= 0 {
			hour := cfg.TradingHour
			s.TradingHour = &hour
		}
		return s, nil

	case bot.NameMovingAverageCrossover:
		base, err := parseToken(cfg.Base)
		if err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
		quoteInput := cfg.Quote
		if quoteInput == "" {
			quoteInput = "USDC"
		}
		quote, err := parseToken(quoteInput)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		assetID := cfg.AssetID
		if assetID == "" {
			assetID = market.LookupAssetID(cfg.Base)
		}
		return bot.MovingAverageCrossover{
			AssetID:        assetID,
			Currency:       cfg.Currency,
			ShortPeriod:    cfg.ShortPeriod,
			LongPeriod:     cfg.LongPeriod,
			Base:           base,
			Quote:          quote,
			AmountPerTrade: amount,
		}, nil

	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}

func requiredDecimal(name, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", name)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

func optionalDecimal(name, value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := requiredDecimal(name, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
