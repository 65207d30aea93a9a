// Package backoff decides when a failed question is retried and how long the
// batch loop waits before the next attempt.
package backoff

import (
	"context"
	"math"
	"time"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// #region policy
// Policy is a capped exponential backoff with an explicit attempt budget.
type Policy struct {
	MaxAttempts int           // total attempts per question, >= 1
	Initial     time.Duration // delay before the second attempt
	Max         time.Duration // delay cap
	Factor      float64       // growth per attempt
}

// DefaultPolicy makes a single attempt, matching the plain sleep-and-continue loop.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 1,
		Initial:     2 * time.Second,
		Max:         30 * time.Second,
		Factor:      2,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.Initial) * math.Pow(factor, exp)
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

// #endregion policy

// #region should-retry
// ShouldRetry reports whether attempt (1-based, just failed with err) earns
// another try. Only transient failures are retried.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return failure.IsTransient(err)
}

// #endregion should-retry

// #region sleep
// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion sleep
