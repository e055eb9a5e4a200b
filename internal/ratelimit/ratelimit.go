package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces consecutive scrape runs. The delay is jittered between
// min and max so runs don't fire on a fixed cadence, and failures widen
// the window while a streak of successes slowly narrows it again.
type Limiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	floor      time.Duration
	ceiling    time.Duration
	lastAction time.Time
	errStreak  int
	okStreak   int
}

func New(minDelay, maxDelay time.Duration) *Limiter {
	return &Limiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		floor:    minDelay,
		ceiling:  4 * maxDelay,
	}
}

// Wait blocks until the jittered delay since the previous action has
// elapsed, or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	delay := l.jitteredDelay()
	elapsed := time.Since(l.lastAction)
	l.mu.Unlock()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.mu.Lock()
	l.lastAction = time.Now()
	l.mu.Unlock()
	return nil
}

// RecordSuccess narrows the delay window after five clean runs.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errStreak = 0
	l.okStreak++
	if l.okStreak < 5 {
		return
	}
	l.okStreak = 0

	l.minDelay = max(time.Duration(float64(l.minDelay)*0.9), l.floor)
	l.maxDelay = max(time.Duration(float64(l.maxDelay)*0.9), l.minDelay)
}

// RecordFailure widens the delay window after three consecutive failures.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.okStreak = 0
	l.errStreak++
	if l.errStreak < 3 {
		return
	}
	l.errStreak = 0

	l.minDelay = min(time.Duration(float64(l.minDelay)*1.5), l.ceiling)
	l.maxDelay = min(time.Duration(float64(l.maxDelay)*1.5), l.ceiling)
}

// Delays returns the current window, for logging and tests.
func (l *Limiter) Delays() (time.Duration, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minDelay, l.maxDelay
}

func (l *Limiter) jitteredDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}
