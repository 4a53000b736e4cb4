// Package ratelimit limits requests per client IP using a shared counter (Redis in production).
package ratelimit

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/server/middleware"
)

// Response headers set on every limited request.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Counter counts hits on key within a fixed window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Limiter allows at most limit requests per client IP per window.
// Counter errors fail open: the request is served and the error is logged.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
}

// NewLimiter returns a Limiter. prefix namespaces the counter keys (e.g. "ratelimit:login:").
func NewLimiter(counter Counter, limit int, window time.Duration, prefix string) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window, prefix: prefix}
}

// Middleware rejects requests over the limit with 429. A nil Limiter passes every request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.counter == nil || l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := middleware.ClientIP(r.Context())
		count, resetIn, err := l.counter.Incr(r.Context(), l.prefix+ip, l.window)
		if err != nil {
			log.Printf("ratelimit: counter unavailable, allowing request ip=%s: %v", ip, err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		resetSecs := strconv.Itoa(int(math.Ceil(resetIn.Seconds())))
		w.Header().Set(HeaderLimit, strconv.Itoa(l.limit))
		w.Header().Set(HeaderRemaining, strconv.FormatInt(remaining, 10))
		w.Header().Set(HeaderReset, resetSecs)

		if count > int64(l.limit) {
			log.Printf("ratelimit: limit exceeded ip=%s count=%d", ip, count)
			w.Header().Set("Retry-After", resetSecs)
			httpx.WriteError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
