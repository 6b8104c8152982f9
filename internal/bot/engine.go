// Package bot runs a trading strategy on a timer against the quote and swap engines.
package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/storage"
	"swapEngine/internal/swap"
)

// DefaultInterval is the time between scheduled ticks.
const DefaultInterval = 60 * time.Second

// DefaultTickTimeout bounds a single tick.
const DefaultTickTimeout = 5 * time.Minute

// journalTimeout bounds the tick journal write, which outlives the tick's ctx.
const journalTimeout = 10 * time.Second

// Quoter prices trade intents.
type Quoter interface {
	GetQuote(ctx context.Context, intent model.TradeIntent) (*model.RouteQuote, error)
}

// Executor submits quoted swaps.
type Executor interface {
	ExecuteSwap(ctx context.Context, quote *model.RouteQuote, signer swap.Signer) (*model.SwapReceipt, error)
}

// PriceHistory serves daily price series.
type PriceHistory interface {
	GetHistoricalPrices(ctx context.Context, assetID, currency string, days int) ([]model.PricePoint, error)
}

// TickSource returns a channel of tick times for interval and a func releasing it.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

// State is the bot lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Config wires an Engine.
type Config struct {
	Strategy Strategy
	Interval time.Duration
	Quoter   Quoter
	Executor Executor
	Prices   PriceHistory
	// Signer is passed to every swap; nil defers to the executor's default signer.
	Signer swap.Signer
	// State persists the last traded DCA window; optional.
	State   storage.StateStore
	Journal storage.Journal
	Logger  *zap.Logger
	// LogSink receives human readable lifecycle and decision messages.
	LogSink     func(string)
	Metrics     *observability.Metrics
	Now         func() time.Time
	Ticks       TickSource
	TickTimeout time.Duration
}

// Engine schedules strategy ticks. Ticks never overlap.
type Engine struct {
	strategy    Strategy
	interval    time.Duration
	quoter      Quoter
	executor    Executor
	prices      PriceHistory
	signer      swap.Signer
	state       storage.StateStore
	journal     storage.Journal
	logger      *zap.Logger
	sink        func(string)
	metrics     *observability.Metrics
	now         func() time.Time
	ticks       TickSource
	tickTimeout time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	tickMu sync.Mutex
	busy   atomic.Bool

	// DCA window bookkeeping, guarded by tickMu.
	windowLoaded bool
	lastWindow   string
}

// NewEngine validates cfg and builds a stopped Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy.(type) {
	case PriceThreshold, DollarCostAverage:
		if cfg.Quoter == nil || cfg.Executor == nil {
			return nil, fmt.Errorf("%s: quoter and executor are required", cfg.Strategy.Name())
		}
	case MovingAverageCrossover:
		if cfg.Quoter == nil || cfg.Executor == nil || cfg.Prices == nil {
			return nil, fmt.Errorf("%s: quoter, executor and price history are required", cfg.Strategy.Name())
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := cfg.LogSink
	if sink == nil {
		sugar := logger.Sugar()
		sink = func(msg string) { sugar.Info(msg) }
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tickTimeout := cfg.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = DefaultTickTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ticks := cfg.Ticks
	if ticks == nil {
		ticks = tickerSource
	}

	return &Engine{
		strategy:    cfg.Strategy,
		interval:    interval,
		quoter:      cfg.Quoter,
		executor:    cfg.Executor,
		prices:      cfg.Prices,
		signer:      cfg.Signer,
		state:       cfg.State,
		journal:     cfg.Journal,
		logger:      logger.With(zap.String("strategy", cfg.Strategy.Name())),
		sink:        sink,
		metrics:     cfg.Metrics,
		now:         now,
		ticks:       ticks,
		tickTimeout: tickTimeout,
	}, nil
}

func tickerSource(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// State reports whether the engine is running.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return StateRunning
	}
	return StateStopped
}

// Busy reports whether a tick is in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Start runs one tick immediately and then one per interval until Stop.
// It returns false if the engine was already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.sink("Bot is already running")
		return false
	}

	e.running = true
	stop := make(chan struct{})
	e.stop = stop
	ticks, release := e.ticks(e.interval)

	e.sink(fmt.Sprintf("Starting trading bot with %s strategy (interval %s)", e.strategy.Name(), e.interval))
	e.metrics.SetBotRunning(true)

	e.wg.Add(1)
	go e.loop(stop, ticks, release)
	return true
}

// Stop cancels future ticks. An in-flight tick runs to completion.
// It returns false if the engine was not running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.sink("Bot is not running")
		return false
	}
	close(e.stop)
	e.stop = nil
	e.running = false
	e.metrics.SetBotRunning(false)
	e.sink("Trading bot stopped")
	return true
}

// Wait blocks until every schedule started so far has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) loop(stop <-chan struct{}, ticks <-chan time.Time, release func()) {
	defer e.wg.Done()
	defer release()

	e.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticks:
			select {
			case <-stop:
				return
			default:
			}
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), e.tickTimeout)
	defer cancel()
	e.RunOnce(ctx)
}

// RunOnce executes a single strategy tick, waiting for any in-flight tick first.
// Errors are logged, counted and journaled, never returned.
func (e *Engine) RunOnce(ctx context.Context) model.TickRecord {
	if e.busy.Load() {
		e.logger.Debug("tick deferred until in-flight tick completes")
	}
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.busy.Store(true)
	defer e.busy.Store(false)

	started := e.now()
	decision, receipt, err := e.evaluate(ctx, started)
	elapsed := e.now().Sub(started)

	record := model.TickRecord{
		Strategy:   e.strategy.Name(),
		StartedAt:  started.UTC(),
		DurationMS: elapsed.Milliseconds(),
		Decision:   decision,
		Receipt:    receipt,
	}
	if err != nil {
		record.Error = err.Error()
		e.sink(fmt.Sprintf("Strategy execution error: %v", err))
		if IsSkip(err) {
			e.logger.Info("tick skipped", zap.Error(err))
		} else {
			e.logger.Warn("tick failed", zap.String("decision", string(decision)), zap.Error(err))
		}
	}
	e.metrics.RecordTick(record.Strategy, string(decision), elapsed, err)

	if e.journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		jerr := e.journal.PutTick(jctx, record)
		cancel()
		e.metrics.RecordJournalWrite(storage.KindTick, jerr)
		if jerr != nil {
			e.logger.Error("journal tick", zap.Error(jerr))
		}
	}
	return record
}

func (e *Engine) evaluate(ctx context.Context, now time.Time) (model.Decision, *model.SwapReceipt, error) {
	switch s := e.strategy.(type) {
	case PriceThreshold:
		return e.priceThreshold(ctx, s)
	case DollarCostAverage:
		return e.dollarCostAverage(ctx, s, now)
	case MovingAverageCrossover:
		return e.movingAverage(ctx, s)
	default:
		return model.DecisionNone, nil, fmt.Errorf("unsupported strategy %T", s)
	}
}

// trade quotes intent afresh and executes it with the bot's signer. Failures are not retried.
func (e *Engine) trade(ctx context.Context, intent model.TradeIntent) (*model.SwapReceipt, error) {
	quote, err := e.quoter.GetQuote(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	receipt, err := e.executor.ExecuteSwap(ctx, quote, e.signer)
	if err != nil {
		return nil, err
	}
	e.sink(fmt.Sprintf("Swap executed: %s", receipt.TransactionID))
	return receipt, nil
}
