package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter decides whether the request identified by key may proceed.
// Implemented by redis.RateLimiter and MemoryLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	Limit() int
}

// KeyFunc derives the rate limit key of a request
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address. RealIP runs first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserOrIP keys requests by authenticated user, falling back to client IP
func UserOrIP(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
	key     KeyFunc
	message string
}

// NewRateLimitMiddleware creates a new rate limit middleware; message is the
// text returned with 429 responses
func NewRateLimitMiddleware(limiter Limiter, key KeyFunc, message string) *RateLimitMiddleware {
	if key == nil {
		key = ClientIP
	}
	return &RateLimitMiddleware{limiter: limiter, key: key, message: message}
}

// Limit rejects requests over the limit with 429
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetTime, err := m.limiter.Allow(r.Context(), m.key(r))
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			log.Error().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		resetIn := max(int(time.Until(resetTime).Seconds()), 0)
		w.Header().Set("RateLimit-Limit", strconv.Itoa(m.limiter.Limit()))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetIn))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(resetIn))
			response.Error(w, http.StatusTooManyRequests, "Too many requests", m.message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MemoryLimiter is a per-process Limiter used when no Redis is configured.
// Each key gets a token bucket refilled at limit per window. Buckets idle for
// a whole window are full again and are swept.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(max(limit, 1))),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.lim.AllowN(now, 1)
	remaining := max(int(b.lim.TokensAt(now)), 0)
	return allowed, remaining, now.Add(l.window / time.Duration(max(l.limit, 1))), nil
}

// sweep drops idle buckets at most once per window. Callers hold l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) Limit() int {
	return l.limit
}
