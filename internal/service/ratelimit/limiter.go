// Package ratelimit implements fixed-window request limits over the shared
// counter cache, so replicas backed by Redis share one budget per client.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	pkgcache "MarketSnap/pkg/cache"
	xhttp "MarketSnap/pkg/http"
	applogger "MarketSnap/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Counter is the subset of pkg/cache.Service the limiter needs.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	counters Counter
	name     string
	limit    int
	window   time.Duration
	now      func() time.Time
	l        *applogger.Logger
}

// New creates a limiter allowing limit requests per window for each key.
// A non-positive limit or window disables limiting.
func New(counters Counter, name string, limit int, window time.Duration, l *applogger.Logger) *Limiter {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Limiter{
		counters: counters,
		name:     name,
		limit:    limit,
		window:   window,
		now:      time.Now,
		l:        l,
	}
}

func (rl *Limiter) enabled() bool {
	return rl.counters != nil && rl.limit > 0 && rl.window > 0
}

// Allow counts one request for key in the current window. On counter
// errors the request is allowed and the error returned for logging.
func (rl *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !rl.enabled() {
		return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit}, nil
	}

	now := rl.now()
	start := now.Truncate(rl.window)
	ck := pkgcache.Key("ratelimit", rl.name, key, strconv.FormatInt(start.Unix(), 10))

	n, err := rl.counters.Increment(ctx, ck)
	if err != nil {
		return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit}, err
	}
	if n == 1 {
		if _, err := rl.counters.Expire(ctx, ck, rl.window); err != nil {
			return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit - 1}, err
		}
	}

	d := Decision{
		Allowed:   n <= int64(rl.limit),
		Limit:     rl.limit,
		Remaining: max(rl.limit-int(n), 0),
	}
	if !d.Allowed {
		d.RetryAfter = start.Add(rl.window).Sub(now)
	}
	return d, nil
}

// Middleware rejects requests over the limit with a 429 envelope. keyFn
// picks the client identity; nil uses the client IP.
func (rl *Limiter) Middleware(keyFn func(echo.Context) string) echo.MiddlewareFunc {
	if keyFn == nil {
		keyFn = func(c echo.Context) string { return c.RealIP() }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.enabled() {
				return next(c)
			}
			key := keyFn(c)
			d, err := rl.Allow(c.Request().Context(), key)
			if err != nil {
				rl.l.Warn("rate limiter unavailable, allowing request",
					applogger.String("limiter", rl.name), applogger.Error(err))
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			rl.l.Info("rate limited",
				applogger.String("limiter", rl.name),
				applogger.String("client", key))
			return xhttp.DataResponse(c, http.StatusTooManyRequests, []*xhttp.AppError{
				xhttp.TooManyRequestsError("too many requests").WithParam("retryAfterSeconds", secs),
			})
		}
	}
}
