package auth

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// SleepFunc is the injectable wait used by retry loops and the settle
// delay, so tests run without real time passing.
type SleepFunc func(ctx context.Context, d time.Duration) error

// CtxSleep waits for d or until the context is cancelled.
func CtxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy is a bounded fixed-delay retry: MaxAttempts tries with Delay
// between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return CtxSleep(ctx, d)
}

// Wait pauses between attempt n and n+1. Returns the context error if the
// wait was cut short.
func (p Policy) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Delay)
}

// DefaultProfilePolicy matches the observed bootstrap behavior: three
// profile lookups, two seconds apart.
func DefaultProfilePolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// ExponentialBackoff is used by the reconciler between failed passes.
// attempt=0 => 2s, attempt=1 => 4s, attempt=2 => 8s, capped at 5m.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second

	capDelay := 5 * time.Minute

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay {
		delay = capDelay
	}

	// small jitter (0–250ms) to avoid thundering herd
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
