// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quote results.
const (
	QuoteOK      = "ok"
	QuoteNoRoute = "no_route"
	QuoteInvalid = "invalid"
	QuoteError   = "error"
)

// Swap outcomes.
const (
	SwapSuccess         = "success"
	SwapNoSigner        = "no_signer"
	SwapExpired         = "expired"
	SwapApprovalFailed  = "approval_failed"
	SwapExecutionFailed = "execution_failed"
)

// Metrics holds all Prometheus metrics for the application. Each instance owns
// its registry so tests and multiple engines never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Quote metrics
	QuotesTotal   *prometheus.CounterVec
	QuoteDuration prometheus.Histogram

	// Swap metrics
	SwapsTotal     *prometheus.CounterVec
	ApprovalsTotal prometheus.Counter
	SwapGasUsed    prometheus.Histogram

	// Bot metrics
	TicksTotal      *prometheus.CounterVec
	TickErrorsTotal *prometheus.CounterVec
	TickDuration    *prometheus.HistogramVec
	BotRunning      prometheus.Gauge

	// Market data metrics
	RateLimitWait       prometheus.Histogram
	UpstreamRequests    *prometheus.CounterVec
	UpstreamRequestTime *prometheus.HistogramVec

	// Journal metrics
	JournalWrites *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swapbot"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		QuotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of quote requests by result",
		}, []string{"result"}),
		QuoteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "duration_seconds",
			Help:      "Quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		SwapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "executions_total",
			Help:      "Total number of swap executions by outcome",
		}, []string{"outcome"}),
		ApprovalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "approvals_total",
			Help:      "Total number of approval transactions sent",
		}),
		SwapGasUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "gas_used",
			Help:      "Gas used by confirmed swaps",
			Buckets:   []float64{50_000, 100_000, 150_000, 200_000, 300_000, 500_000, 1_000_000},
		}),

		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "ticks_total",
			Help:      "Total number of strategy ticks by decision",
		}, []string{"strategy", "decision"}),
		TickErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "tick_errors_total",
			Help:      "Total number of failed strategy ticks",
		}, []string{"strategy"}),
		TickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "tick_duration_seconds",
			Help:      "Strategy tick duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		BotRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "running",
			Help:      "1 when the bot schedule is active",
		}),

		RateLimitWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the rate limiter",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "upstream_requests_total",
			Help:      "Total number of market data requests by service and status",
		}, []string{"service", "status"}),
		UpstreamRequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "upstream_request_seconds",
			Help:      "Market data request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),

		JournalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "writes_total",
			Help:      "Total number of journal writes by kind and status",
		}, []string{"kind", "status"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The Record helpers are safe on a nil receiver so components can run without metrics.

// RecordQuote records a quote result and its latency.
func (m *Metrics) RecordQuote(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(result).Inc()
	m.QuoteDuration.Observe(elapsed.Seconds())
}

// RecordSwap records a swap outcome.
func (m *Metrics) RecordSwap(outcome string, gasUsed uint64) {
	if m == nil {
		return
	}
	m.SwapsTotal.WithLabelValues(outcome).Inc()
	if outcome == SwapSuccess {
		m.SwapGasUsed.Observe(float64(gasUsed))
	}
}

// RecordApproval records a sent approval transaction.
func (m *Metrics) RecordApproval() {
	if m == nil {
		return
	}
	m.ApprovalsTotal.Inc()
}

// RecordTick records one strategy tick.
func (m *Metrics) RecordTick(strategy, decision string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(strategy, decision).Inc()
	m.TickDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err != nil {
		m.TickErrorsTotal.WithLabelValues(strategy).Inc()
	}
}

// SetBotRunning updates the running gauge.
func (m *Metrics) SetBotRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.BotRunning.Set(1)
		return
	}
	m.BotRunning.Set(0)
}

// RateLimitObserver returns the histogram the rate limiter reports waits to, or nil.
func (m *Metrics) RateLimitObserver() prometheus.Observer {
	if m == nil {
		return nil
	}
	return m.RateLimitWait
}

// RecordUpstream records one market data request.
func (m *Metrics) RecordUpstream(service, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, status).Inc()
	m.UpstreamRequestTime.WithLabelValues(service).Observe(elapsed.Seconds())
}

// RecordJournalWrite records a journal write.
func (m *Metrics) RecordJournalWrite(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JournalWrites.WithLabelValues(kind, status).Inc()
}
