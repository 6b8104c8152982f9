// Package ratelimit spaces calls to third-party data services.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the spacing used when none is configured.
const DefaultMinInterval = time.Second

// Observer receives the time each caller spent waiting, in seconds.
// prometheus.Observer satisfies it.
type Observer interface {
	Observe(float64)
}

// Limiter admits at most one call per minInterval. Waiters are admitted in
// reservation order.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	observer Observer
}

// New returns a limiter with the given spacing. A non-positive interval uses DefaultMinInterval.
func New(minInterval time.Duration, observer Observer) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		interval: minInterval,
		observer: observer,
	}
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.interval
}

// AwaitTurn blocks until the caller may proceed or ctx is done.
func (l *Limiter) AwaitTurn(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("await rate limit: %w", err)
	}
	if l.observer != nil {
		l.observer.Observe(time.Since(start).Seconds())
	}
	return nil
}
