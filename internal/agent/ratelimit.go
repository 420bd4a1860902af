package agent

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-user limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-user token bucket.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter allows perMinute requests per user with the given burst and
// starts the background eviction goroutine.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		done:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	r.mu.Unlock()

	return entry.limiter.Allow()
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.once.Do(func() { close(r.done) })
}

// startEviction periodically removes idle keys, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(limiterIdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.evict(time.Now().Add(-limiterIdleTTL))
			}
		}
	}()
}

func (r *RateLimiter) evict(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}
