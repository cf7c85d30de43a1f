// Package ratelimit provides the optional client-side request limiter: a
// token bucket for per-minute burst control plus a fixed window counter for
// the hourly quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter enforces per-minute and per-hour request limits. A zero limit
// means unlimited for that tier.
type Limiter struct {
	rpm int
	rph int

	mu sync.Mutex

	tokens     float64
	maxTokens  float64
	lastRefill time.Time

	hourCount int
	hourStart time.Time
}

// New creates a limiter with the given per-minute and per-hour limits.
func New(rpm, rph int) *Limiter {
	now := time.Now()
	l := &Limiter{
		rpm:       rpm,
		rph:       rph,
		hourStart: now.Truncate(time.Hour),
	}
	if rpm > 0 {
		l.tokens = float64(rpm)
		l.maxTokens = float64(rpm)
		l.lastRefill = now
	}
	return l
}

// ErrQuotaExhausted is returned when the hourly quota is used up; waiting
// for the token bucket cannot help until the window resets.
type ErrQuotaExhausted struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *ErrQuotaExhausted) Error() string {
	return fmt.Sprintf("hourly request quota exhausted (%d max), retry after %s",
		e.Limit, e.RetryAfter.Truncate(time.Second))
}

// Wait blocks until a request slot is available or ctx is cancelled.
// Returns ErrQuotaExhausted when the hourly window is spent.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || (l.rpm == 0 && l.rph == 0) {
		return nil
	}
	for {
		retryAfter, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if retryAfter == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

func (l *Limiter) tryAcquire() (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if l.rph > 0 {
		hourStart := now.Truncate(time.Hour)
		if hourStart != l.hourStart {
			l.hourCount = 0
			l.hourStart = hourStart
		}
		if l.hourCount >= l.rph {
			return 0, &ErrQuotaExhausted{
				Limit:      l.rph,
				RetryAfter: l.hourStart.Add(time.Hour).Sub(now),
			}
		}
	}

	if l.rpm > 0 {
		elapsed := now.Sub(l.lastRefill)
		l.tokens += elapsed.Seconds() * (float64(l.rpm) / 60.0)
		if l.tokens > l.maxTokens {
			l.tokens = l.maxTokens
		}
		l.lastRefill = now

		if l.tokens < 1.0 {
			deficit := 1.0 - l.tokens
			refillTime := time.Duration(deficit / (float64(l.rpm) / 60.0) * float64(time.Second))
			if refillTime < time.Millisecond {
				refillTime = time.Millisecond
			}
			return refillTime, nil
		}
		l.tokens -= 1.0
	}

	if l.rph > 0 {
		l.hourCount++
	}
	return 0, nil
}
