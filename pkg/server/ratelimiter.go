package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter implements per-client rate limiting with a sliding window.
// A limit of zero or less disables it.
type RateLimiter struct {
	requests        map[string][]time.Time
	limit           int
	window          time.Duration
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		requests:        make(map[string][]time.Time),
		limit:           limit,
		window:          window,
		cleanupInterval: 5 * window,
		stopCleanup:     make(chan struct{}),
	}

	if limit > 0 {
		go rl.startCleanup()
	}

	return rl
}

// Allow reports whether a request from client fits in the window and
// records it if so.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.prune(rl.requests[client], now)
	if len(recent) >= rl.limit {
		rl.requests[client] = recent
		return false
	}
	rl.requests[client] = append(recent, now)
	return true
}

// RetryAfter returns the whole seconds until client may send again.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	reqs := rl.requests[client]
	if len(reqs) == 0 {
		return 0
	}

	wait := rl.window - time.Since(reqs[0])
	if wait <= 0 {
		return 0
	}
	// round up
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *RateLimiter) prune(reqs []time.Time, now time.Time) []time.Time {
	valid := reqs[:0]
	for _, t := range reqs {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup forgets clients without recent requests.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for client, reqs := range rl.requests {
		valid := rl.prune(reqs, now)
		if len(valid) == 0 {
			delete(rl.requests, client)
		} else {
			rl.requests[client] = valid
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// clientIP extracts the client address from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
