// Package ratelimit throttles analysis requests with a fixed window per
// caller kept in Redis, so the count is shared by every concurrent
// invocation. The window state is advanced with a single INCR; there is no
// read-then-write and no local lock.
package ratelimit

import (
	"context"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/smarter-poker/world-hub/pkg/logging"
)

// AnonymousCaller is the shared bucket for requests without an identity.
// All anonymous traffic competes for one window; that is a documented
// weaker guarantee, not a bug.
const AnonymousCaller = "anonymous"

const keyPrefix = "ratelimit:"

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter int // seconds; set only when denied
}

// Limiter is a Redis-backed fixed-window rate limiter.
type Limiter struct {
	client goredis.UniversalClient
	logger logging.Logger
	window time.Duration
	max    int
}

// Config holds limiter settings.
type Config struct {
	Client goredis.UniversalClient
	Logger logging.Logger
	Window time.Duration
	Max    int
}

// New builds a limiter. Zero values get the defaults (60s window, 30
// requests).
func New(cfg Config) *Limiter {
	window := cfg.Window
	if window == 0 {
		window = time.Minute
	}
	max := cfg.Max
	if max == 0 {
		max = 30
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Limiter{
		client: cfg.Client,
		logger: logger,
		window: window,
		max:    max,
	}
}

// Check charges one request against the caller's window and reports whether
// it is allowed. Redis being unreachable fails open with a warning: analysis
// throttling is a cost control, and the posting dedup guarantee never runs
// through this component.
func (l *Limiter) Check(ctx context.Context, callerID string) Decision {
	if callerID == "" {
		callerID = AnonymousCaller
	}
	key := keyPrefix + callerID

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.WithError(err).WithField("caller_id", callerID).
			Warn("Rate limiter unavailable; failing open")
		return Decision{Allowed: true, Remaining: -1}
	}

	// Starts the clock on a fresh window. NX also repairs a key whose
	// expiry was lost to a crash between INCR and EXPIRE; without it an
	// under-ceiling caller keeps an immortal counter.
	l.client.ExpireNX(ctx, key, l.window)

	if count <= int64(l.max) {
		return Decision{Allowed: true, Remaining: l.max - int(count)}
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// Key lost its expiry; restore the window rather than denying forever.
		l.client.Expire(ctx, key, l.window)
		ttl = l.window
	}
	retryAfter := int(math.Ceil(ttl.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}
