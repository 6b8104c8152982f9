package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/storage"
	"swapEngine/internal/swap"
)

var (
	baseToken  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	quoteToken = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

type fakeQuoter struct {
	mu      sync.Mutex
	price   string
	err     error
	intents []model.TradeIntent
	block   chan struct{}

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeQuoter) GetQuote(_ context.Context, intent model.TradeIntent) (*model.RouteQuote, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.maxInflight.Load()
		if n <= peak || f.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.intents = append(f.intents, intent)
	block := f.block
	price, err := f.price, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &model.RouteQuote{
		FromToken:      model.TokenDescriptor{Address: intent.FromToken, Symbol: "BASE"},
		ToToken:        model.TokenDescriptor{Address: intent.ToToken, Symbol: "QUOTE"},
		AmountIn:       intent.Amount,
		ExpectedOutput: price,
	}, nil
}

func (f *fakeQuoter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intents)
}

func (f *fakeQuoter) intent(i int) model.TradeIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intents[i]
}

type fakeExecutor struct {
	mu     sync.Mutex
	quotes []*model.RouteQuote
	err    error
}

func (f *fakeExecutor) ExecuteSwap(_ context.Context, quote *model.RouteQuote, _ swap.Signer) (*model.SwapReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, quote)
	if f.err != nil {
		return nil, f.err
	}
	return &model.SwapReceipt{
		TransactionID: fmt.Sprintf("0x%02x", len(f.quotes)),
		FromToken:     quote.FromToken.Address,
		ToToken:       quote.ToToken.Address,
		AmountIn:      quote.AmountIn,
	}, nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.quotes)
}

type manualTicks struct {
	ch       chan time.Time
	sources  atomic.Int32
	released atomic.Int32
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) source(time.Duration) (<-chan time.Time, func()) {
	m.sources.Add(1)
	return m.ch, func() { m.released.Add(1) }
}

type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (l *logSink) write(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *logSink) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func decimalPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func thresholdStrategy(min, max string) PriceThreshold {
	s := PriceThreshold{
		Base:           baseToken,
		Quote:          quoteToken,
		AmountPerTrade: decimal.RequireFromString("2.5"),
	}
	if min != "" {
		s.MinPrice = decimalPtr(min)
	}
	if max != "" {
		s.MaxPrice = decimalPtr(max)
	}
	return s
}

const waitFor = 2 * time.Second

func TestStartTwiceKeepsOneSchedule(t *testing.T) {
	quoter := &fakeQuoter{price: "50"}
	ticks := newManualTicks()
	sink := &logSink{}
	metrics := observability.NewMetrics("test")
	engine, err := NewEngine(Config{
		Strategy: thresholdStrategy("100", ""),
		Quoter:   quoter,
		Executor: &fakeExecutor{},
		Ticks:    ticks.source,
		LogSink:  sink.write,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	assert.Equal(t, StateStopped, engine.State())

	require.True(t, engine.Start())
	require.Eventually(t, func() bool { return quoter.calls() == 1 }, waitFor, time.Millisecond)

	assert.False(t, engine.Start())
	assert.True(t, sink.contains("already running"))
	assert.Equal(t, int32(1), ticks.sources.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BotRunning))

	for i := 0; i < 3; i++ {
		ticks.ch <- time.Now()
	}
	require.Eventually(t, func() bool { return quoter.calls() == 4 }, waitFor, time.Millisecond)

	require.True(t, engine.Stop())
	engine.Wait()
	assert.Equal(t, StateStopped, engine.State())
	assert.Equal(t, int32(1), ticks.released.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BotRunning))
	assert.False(t, engine.Stop())

	require.True(t, engine.Start())
	require.Eventually(t, func() bool { return quoter.calls() == 5 }, waitFor, time.Millisecond)
	ticks.ch <- time.Now()
	require.Eventually(t, func() bool { return quoter.calls() == 6 }, waitFor, time.Millisecond)
	assert.Equal(t, int32(2), ticks.sources.Load())

	require.True(t, engine.Stop())
	engine.Wait()
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.TicksTotal.WithLabelValues(NamePriceThreshold, string(model.DecisionNone))))
}

func TestTickErrorKeepsBotRunning(t *testing.T) {
	quoter := &fakeQuoter{err: errors.New("rpc down")}
	ticks := newManualTicks()
	sink := &logSink{}
	metrics := observability.NewMetrics("test")
	journal := storage.NewJsonlJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	engine, err := NewEngine(Config{
		Strategy: thresholdStrategy("100", ""),
		Quoter:   quoter,
		Executor: &fakeExecutor{},
		Ticks:    ticks.source,
		LogSink:  sink.write,
		Metrics:  metrics,
		Journal:  journal,
	})
	require.NoError(t, err)

	require.True(t, engine.Start())
	require.Eventually(t, func() bool { return quoter.calls() == 1 }, waitFor, time.Millisecond)
	ticks.ch <- time.Now()
	require.Eventually(t, func() bool { return quoter.calls() == 2 }, waitFor, time.Millisecond)

	assert.Equal(t, StateRunning, engine.State())
	assert.True(t, sink.contains("Strategy execution error"))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.TickErrorsTotal.WithLabelValues(NamePriceThreshold)) == 2
	}, waitFor, time.Millisecond)

	engine.Stop()
	engine.Wait()
}

type ctxCheckingJournal struct {
	mu      sync.Mutex
	ticks   []model.TickRecord
	ctxErrs []error
}

func (j *ctxCheckingJournal) PutReceipt(context.Context, model.SwapReceipt) error { return nil }

func (j *ctxCheckingJournal) PutTick(ctx context.Context, tick model.TickRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ticks = append(j.ticks, tick)
	j.ctxErrs = append(j.ctxErrs, ctx.Err())
	return ctx.Err()
}

func TestRunOnceJournalsTimedOutTick(t *testing.T) {
	journal := &ctxCheckingJournal{}
	metrics := observability.NewMetrics("test")
	engine, err := NewEngine(Config{
		Strategy: thresholdStrategy("100", ""),
		Quoter:   &fakeQuoter{err: context.DeadlineExceeded},
		Executor: &fakeExecutor{},
		LogSink:  func(string) {},
		Metrics:  metrics,
		Journal:  journal,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	record := engine.RunOnce(ctx)
	assert.Contains(t, record.Error, "deadline exceeded")

	journal.mu.Lock()
	defer journal.mu.Unlock()
	require.Len(t, journal.ticks, 1)
	assert.Equal(t, record.Error, journal.ticks[0].Error)
	assert.NoError(t, journal.ctxErrs[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JournalWrites.WithLabelValues(storage.KindTick, "ok")))
}

func TestRunOnceDefersOverlappingTick(t *testing.T) {
	block := make(chan struct{})
	quoter := &fakeQuoter{price: "50", block: block}
	engine, err := NewEngine(Config{
		Strategy: thresholdStrategy("100", ""),
		Quoter:   quoter,
		Executor: &fakeExecutor{},
		LogSink:  func(string) {},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.RunOnce(context.Background())
	}()
	require.Eventually(t, engine.Busy, waitFor, time.Millisecond)

	go func() {
		defer wg.Done()
		engine.RunOnce(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, quoter.calls())

	close(block)
	wg.Wait()
	assert.Equal(t, 2, quoter.calls())
	assert.Equal(t, int32(1), quoter.maxInflight.Load())
	assert.False(t, engine.Busy())
}

func TestPriceThresholdDecisions(t *testing.T) {
	cases := []struct {
		name     string
		min, max string
		price    string
		want     model.Decision
		from, to common.Address
	}{
		{name: "sell at min", min: "10", price: "10", want: model.DecisionSell, from: baseToken, to: quoteToken},
		{name: "buy at max", max: "5", price: "4.2", want: model.DecisionBuy, from: quoteToken, to: baseToken},
		{name: "gap between thresholds", min: "10", max: "5", price: "7", want: model.DecisionNone},
		{name: "inverted thresholds sell first", min: "5", max: "10", price: "7", want: model.DecisionSell, from: baseToken, to: quoteToken},
		{name: "below min only", min: "10", price: "9.99", want: model.DecisionNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quoter := &fakeQuoter{price: tc.price}
			executor := &fakeExecutor{}
			engine, err := NewEngine(Config{
				Strategy: thresholdStrategy(tc.min, tc.max),
				Quoter:   quoter,
				Executor: executor,
				LogSink:  func(string) {},
			})
			require.NoError(t, err)

			record := engine.RunOnce(context.Background())
			assert.Equal(t, tc.want, record.Decision)
			assert.Empty(t, record.Error)

			probe := quoter.intent(0)
			assert.Equal(t, "1", probe.Amount)
			assert.Equal(t, baseToken, probe.FromToken)

			if tc.want == model.DecisionNone {
				assert.Equal(t, 0, executor.count())
				assert.Nil(t, record.Receipt)
				return
			}
			require.Equal(t, 1, executor.count())
			require.NotNil(t, record.Receipt)
			trade := quoter.intent(1)
			assert.Equal(t, tc.from, trade.FromToken)
			assert.Equal(t, tc.to, trade.ToToken)
			assert.Equal(t, "2.5", trade.Amount)
		})
	}
}

func TestPriceThresholdExecutionFailureIsRecorded(t *testing.T) {
	executor := &fakeExecutor{err: model.ErrSwapExecutionFailed}
	engine, err := NewEngine(Config{
		Strategy: thresholdStrategy("1", ""),
		Quoter:   &fakeQuoter{price: "3"},
		Executor: executor,
		LogSink:  func(string) {},
	})
	require.NoError(t, err)

	record := engine.RunOnce(context.Background())
	assert.Equal(t, model.DecisionSell, record.Decision)
	assert.Contains(t, record.Error, model.ErrSwapExecutionFailed.Error())
	assert.Equal(t, 1, executor.count())
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestDollarCostAverageOncePerWindow(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	strategy := DollarCostAverage{
		From:           quoteToken,
		To:             baseToken,
		AmountPerTrade: decimal.RequireFromString("100"),
	}
	newEngine := func(c *clock, executor *fakeExecutor) *Engine {
		engine, err := NewEngine(Config{
			Strategy: strategy,
			Quoter:   &fakeQuoter{price: "0.03"},
			Executor: executor,
			State:    storage.NewStateFile(statePath),
			LogSink:  func(string) {},
			Now:      c.Now,
		})
		require.NoError(t, err)
		return engine
	}

	c := &clock{}
	executor := &fakeExecutor{}
	engine := newEngine(c, executor)

	steps := []struct {
		at   time.Time
		want model.Decision
	}{
		{time.Date(2024, 3, 1, 11, 59, 0, 0, time.UTC), model.DecisionSkip},
		{time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC), model.DecisionBuy},
		{time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), model.DecisionSkip},
		{time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), model.DecisionSkip},
		{time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), model.DecisionSkip},
		{time.Date(2024, 3, 15, 12, 10, 0, 0, time.UTC), model.DecisionBuy},
	}
	for _, step := range steps {
		c.Set(step.at)
		record := engine.RunOnce(context.Background())
		assert.Equal(t, step.want, record.Decision, step.at.String())
		assert.Empty(t, record.Error)
	}
	assert.Equal(t, 2, executor.count())

	// A restart inside the same window does not trade again.
	restarted := &fakeExecutor{}
	c.Set(time.Date(2024, 3, 15, 12, 45, 0, 0, time.UTC))
	record := newEngine(c, restarted).RunOnce(context.Background())
	assert.Equal(t, model.DecisionSkip, record.Decision)
	assert.Equal(t, 0, restarted.count())
}

func TestDollarCostAverageFailedTradeConsumesWindow(t *testing.T) {
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	executor := &fakeExecutor{err: model.ErrApprovalFailed}
	engine, err := NewEngine(Config{
		Strategy: DollarCostAverage{From: quoteToken, To: baseToken, AmountPerTrade: decimal.NewFromInt(5)},
		Quoter:   &fakeQuoter{price: "1"},
		Executor: executor,
		LogSink:  func(string) {},
		Now:      c.Now,
	})
	require.NoError(t, err)

	first := engine.RunOnce(context.Background())
	assert.NotEmpty(t, first.Error)
	second := engine.RunOnce(context.Background())
	assert.Equal(t, model.DecisionSkip, second.Decision)
	assert.Equal(t, 1, executor.count())
}

type fakePrices struct {
	series []decimal.Decimal
	day    int
	asked  []int
}

func (f *fakePrices) GetHistoricalPrices(_ context.Context, assetID, currency string, days int) ([]model.PricePoint, error) {
	f.asked = append(f.asked, days)
	end := f.day + 1
	start := end - days
	if start < 0 {
		start = 0
	}
	points := make([]model.PricePoint, 0, end-start)
	for i := start; i < end; i++ {
		points = append(points, model.PricePoint{Timestamp: int64(i) * 86400000, Price: f.series[i]})
	}
	return points, nil
}

func TestMovingAverageSingleCrossover(t *testing.T) {
	raw := []int64{10, 10, 10, 10, 10, 9, 8, 8, 12, 14, 16, 17, 18}
	series := make([]decimal.Decimal, len(raw))
	for i, v := range raw {
		series[i] = decimal.NewFromInt(v)
	}
	prices := &fakePrices{series: series}
	quoter := &fakeQuoter{price: "1"}
	executor := &fakeExecutor{}
	engine, err := NewEngine(Config{
		Strategy: MovingAverageCrossover{
			AssetID:        "ethereum",
			ShortPeriod:    2,
			LongPeriod:     4,
			Base:           baseToken,
			Quote:          quoteToken,
			AmountPerTrade: decimal.NewFromInt(250),
		},
		Quoter:   quoter,
		Executor: executor,
		Prices:   prices,
		LogSink:  func(string) {},
	})
	require.NoError(t, err)

	var buys, sells []int
	for day := range series {
		prices.day = day
		record := engine.RunOnce(context.Background())
		switch record.Decision {
		case model.DecisionBuy:
			buys = append(buys, day)
		case model.DecisionSell:
			sells = append(sells, day)
		}
		if day < 4 {
			assert.Equal(t, model.DecisionSkip, record.Decision)
			assert.Contains(t, record.Error, model.ErrInsufficientHistory.Error())
		}
	}

	assert.Equal(t, []int{8}, buys)
	assert.Empty(t, sells)
	assert.Equal(t, 5, prices.asked[0])
	require.Equal(t, 1, executor.count())
	trade := quoter.intent(0)
	assert.Equal(t, quoteToken, trade.FromToken)
	assert.Equal(t, baseToken, trade.ToToken)
	assert.Equal(t, "250", trade.Amount)
}

func TestMovingAverageBearishCrossoverSells(t *testing.T) {
	raw := []int64{10, 10, 10, 10, 10, 11, 12, 7}
	series := make([]decimal.Decimal, len(raw))
	for i, v := range raw {
		series[i] = decimal.NewFromInt(v)
	}
	prices := &fakePrices{series: series, day: len(series) - 1}
	quoter := &fakeQuoter{price: "1"}
	engine, err := NewEngine(Config{
		Strategy: MovingAverageCrossover{AssetID: "ethereum", ShortPeriod: 2, LongPeriod: 4, Base: baseToken, Quote: quoteToken, AmountPerTrade: decimal.NewFromInt(1)},
		Quoter:   quoter,
		Executor: &fakeExecutor{},
		Prices:   prices,
		LogSink:  func(string) {},
	})
	require.NoError(t, err)

	record := engine.RunOnce(context.Background())
	assert.Equal(t, model.DecisionSell, record.Decision)
	assert.Equal(t, baseToken, quoter.intent(0).FromToken)
}

func TestNewEngineValidation(t *testing.T) {
	deps := Config{Quoter: &fakeQuoter{}, Executor: &fakeExecutor{}}

	_, err := NewEngine(deps)
	require.Error(t, err)

	noThreshold := deps
	noThreshold.Strategy = thresholdStrategy("", "")
	_, err = NewEngine(noThreshold)
	require.ErrorContains(t, err, "min price or max price")

	badPeriods := deps
	badPeriods.Prices = &fakePrices{}
	badPeriods.Strategy = MovingAverageCrossover{AssetID: "ethereum", ShortPeriod: 30, Base: baseToken, Quote: quoteToken, AmountPerTrade: decimal.NewFromInt(1)}
	_, err = NewEngine(badPeriods)
	require.ErrorContains(t, err, "short period")

	noPrices := deps
	noPrices.Strategy = MovingAverageCrossover{AssetID: "ethereum", Base: baseToken, Quote: quoteToken, AmountPerTrade: decimal.NewFromInt(1)}
	_, err = NewEngine(noPrices)
	require.ErrorContains(t, err, "price history")

	hour := 24
	badHour := deps
	badHour.Strategy = DollarCostAverage{From: quoteToken, To: baseToken, AmountPerTrade: decimal.NewFromInt(1), TradingHour: &hour}
	_, err = NewEngine(badHour)
	require.ErrorContains(t, err, "trading hour")

	zeroAmount := deps
	zeroAmount.Strategy = DollarCostAverage{From: quoteToken, To: baseToken}
	_, err = NewEngine(zeroAmount)
	require.ErrorContains(t, err, "amount per trade")
}
