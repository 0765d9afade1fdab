package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

// RateLimiter is a per-key token bucket. Idle buckets expire from the cache.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	rate    float64 // tokens per second
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewRateLimiter allows rate requests/sec per key with the given burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: gocache.New(10*time.Minute, 5*time.Minute),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed and consumes a token if so.
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// take consumes a token for key, or reports how long until one is available.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit := float64(rl.burst)
	b := &bucket{tokens: limit, lastTime: now}
	if cached, found := rl.buckets.Get(key); found {
		b = cached.(*bucket)
	}
	b.tokens = math.Min(limit, b.tokens+now.Sub(b.lastTime).Seconds()*rl.rate)
	b.lastTime = now
	rl.buckets.SetDefault(key, b)

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.rate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
}

// RateLimit rejects requests over the limit with 429 and a Retry-After hint. Buckets are keyed by
// clinic and client IP so one clinic's traffic cannot starve another's.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := tenancy.OrgIDOrDefault(r.Context(), "") + "|" + clientIP(r)
			if ok, wait := limiter.take(key); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				httpx.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr; X-Real-Ip covers proxies without it.
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
