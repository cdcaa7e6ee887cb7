package web

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window request cap. Wait blocks until a
// slot opens or the context expires.
type RateLimiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	times []time.Time
	now   func() time.Time
}

// NewRateLimiter creates a limiter of max requests per window. max <= 0
// disables limiting.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{max: max, window: window, now: time.Now}
}

// Wait blocks until the caller may proceed, recording the request on
// success. Returns ctx.Err() when the deadline expires first.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.max <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.times) < l.max {
			l.times = append(l.times, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest request leaving the window frees the next slot.
		wakeAt := l.times[0].Add(l.window)
		l.mu.Unlock()

		timer := time.NewTimer(wakeAt.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow reports whether a request may proceed right now, recording it if
// so.
func (l *RateLimiter) Allow() bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	if len(l.times) >= l.max {
		return false
	}
	l.times = append(l.times, now)
	return true
}

func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	l.times = l.times[i:]
}
