package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"decoder-ledger/internal/audit"
)

const (
	defaultIdleTTL       = 10 * time.Minute
	defaultCleanupPeriod = time.Minute
)

// IPRateLimiter keeps one token bucket per client IP. Idle buckets expire.
type IPRateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewIPRateLimiter creates a limiter allowing r requests per second with burst b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(defaultIdleTTL, defaultCleanupPeriod),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	if cached, ok := i.limiters.Get(ip); ok {
		limiter := cached.(*rate.Limiter)
		i.limiters.SetDefault(ip, limiter)
		return limiter
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if cached, ok := i.limiters.Get(ip); ok {
		return cached.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.limiters.SetDefault(ip, limiter)
	return limiter
}

// Wrap rejects requests over the client's budget with 429.
func (i *IPRateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.GetLimiter(audit.ClientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
