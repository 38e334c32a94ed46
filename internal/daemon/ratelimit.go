package daemon

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding one-minute request window per
// credential. It is the only cross-request state the daemon holds.
type RateLimiter struct {
	mu       sync.Mutex
	perMin   int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimiter allows perMin requests per key per minute.
func NewRateLimiter(perMin int) *RateLimiter {
	return &RateLimiter{
		perMin:   perMin,
		window:   time.Minute,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records one request for key and reports whether it fits in
// the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[key][:0]
	for _, ts := range rl.requests[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.perMin {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}
