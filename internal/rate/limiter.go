// Package rate provides fixed-window rate limiting for the token-issuance
// path. Counters are the only shared mutable state in the gateway; both
// backends serialize increments per key.
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result describes one admission decision.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter is the minimal interface the HTTP layer consumes.
//
// An error return means the counter store could not answer; callers must
// fail closed and treat the request as over the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// DefaultStoreTimeout bounds a single counter-store round trip. The store
// is the gateway's only blocking point; an unbounded call would let a slow
// Redis stall every issuance request.
const DefaultStoreTimeout = 250 * time.Millisecond

// RedisLimiter: simple fixed window (INCR + EXPIRE) on a shared Redis, for
// multi-instance deployments.
type RedisLimiter struct {
	Client  *rdb.Client
	Prefix  string
	Max     int64
	Window  time.Duration
	Timeout time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client:  client,
		Prefix:  prefix,
		Max:     int64(max),
		Window:  window,
		Timeout: DefaultStoreTimeout,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// set expiry on first hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
		ttl = l.Client.TTL(ctx, redisKey)
	}

	hits := incr.Val()
	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl.Val(),
	}
	if !allowed {
		// Retry after the remainder of the window.
		res.RetryAfter = ttl.Val()
		if res.RetryAfter < 0 {
			res.RetryAfter = time.Duration(math.Ceil(l.Window.Seconds())) * time.Second
		}
	}
	return res, nil
}
