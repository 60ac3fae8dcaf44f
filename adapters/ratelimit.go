package adapters

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/advdv/bserve"
	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// TooManyRequests is returned by the rate limiter when a client exhausted its budget.
var TooManyRequests = bserve.NewError(bserve.CodeTooManyRequests, errors.New("429 too many requests"))

// RateLimitConfig configures the [RateLimit] adapter.
type RateLimitConfig struct {
	Rate            float64                      // requests per second
	Burst           int                          // max burst, at least 1
	KeyFunc         func(r *http.Request) string // default: remote IP
	Limited         bserve.Handler               // default: TooManyRequests
	CleanupInterval time.Duration                // how often idle limiters are pruned (default: 1m)
	MaxIdle         time.Duration                // limiters idle longer than this are removed (default: 5m)
}

// RateLimiter applies a token bucket per client key.
type RateLimiter struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
	now         func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter from cfg, filling in defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RemoteIP
	}

	if cfg.Limited == nil {
		cfg.Limited = TooManyRequests
	}

	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}

	return &RateLimiter{cfg: cfg, limiters: map[string]*limiterEntry{}, now: time.Now}
}

// RateLimit returns an adapter that limits requests per client. A limited request is answered by
// cfg.Limited with a persistent Retry-After header.
func RateLimit(cfg RateLimitConfig) bserve.Adapter {
	return NewRateLimiter(cfg)
}

// Allow reports whether a request for key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	return l.entry(key).Allow()
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.limiters)
}

// Adapt implements [bserve.Adapter].
func (l *RateLimiter) Adapt(next bserve.Handler) bserve.Handler {
	return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		if l.Allow(l.cfg.KeyFunc(r)) {
			return next.ServeBHTTP(c, w, r)
		}

		c.SetPersistentHeader(w, "Retry-After", l.retryAfter())
		c.Logger().Debug("rate limited")

		return l.cfg.Limited.ServeBHTTP(c, w, r)
	})
}

func (l *RateLimiter) entry(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) >= l.cfg.CleanupInterval {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.cfg.MaxIdle {
				delete(l.limiters, k)
			}
		}

		l.lastCleanup = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.limiters[key] = e
	}

	e.lastSeen = now

	return e.limiter
}

// retryAfter is the number of whole seconds until one token is available again.
func (l *RateLimiter) retryAfter() string {
	if l.cfg.Rate <= 0 {
		return "1"
	}

	return strconv.Itoa(int(math.Max(1, math.Ceil(1/l.cfg.Rate))))
}

// RemoteIP returns the host part of the remote address of r.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
