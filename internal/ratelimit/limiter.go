package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a per-key cooldown with atomic check-and-set semantics:
// a successful Reserve opens a new window, a denied one leaves the current
// window untouched and reports how long remains.
type Limiter interface {
	Reserve(ctx context.Context, key string) (remaining time.Duration, ok bool, err error)
}

// MemoryLimiter tracks cooldown windows in a process-local map. Losing this
// state on restart is an accepted trade-off; the cooldown is an abuse
// guard, not a billing control.
type MemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewMemoryLimiter builds an in-process limiter with the given window.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Reserve opens a cooldown window for key, or reports the remainder of the
// window already in flight.
func (l *MemoryLimiter) Reserve(_ context.Context, key string) (time.Duration, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < l.window {
			return l.window - elapsed, false, nil
		}
	}
	l.last[key] = now
	return 0, true, nil
}
