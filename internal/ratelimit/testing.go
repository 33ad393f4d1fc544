package ratelimit

import "time"

// SetClock is a test helper that replaces the memory limiter's time source.
func SetClock(l *MemoryLimiter, now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
