package rate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: fixed window backed by an in-process cache. Suitable for
// single-instance deployments and tests; multi-instance setups need the
// RedisLimiter so all replicas share one counter.
type MemoryLimiter struct {
	buckets *gocache.Cache
	max     int64
	window  time.Duration

	// now is the clock; tests override it.
	now func() time.Time
}

type bucket struct {
	count int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		// Buckets are keyed by window start, so they go stale after one
		// window; the janitor just reclaims memory.
		buckets: gocache.New(window, 2*window),
		max:     int64(max),
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	winTTL := winStart.Add(l.window).Sub(now)
	bucketKey := fmt.Sprintf("%s:%d", key, winStart.Unix())

	b := l.bucket(bucketKey, winTTL)
	hits := atomic.AddInt64(&b.count, 1)

	allowed := hits <= l.max
	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   winTTL,
	}
	if !allowed {
		res.RetryAfter = winTTL
	}
	return res, nil
}

// bucket returns the counter for bucketKey, creating it if needed.
// gocache.Add is atomic, so concurrent creators converge on one bucket.
func (l *MemoryLimiter) bucket(bucketKey string, ttl time.Duration) *bucket {
	for {
		if v, ok := l.buckets.Get(bucketKey); ok {
			return v.(*bucket)
		}
		if err := l.buckets.Add(bucketKey, &bucket{}, ttl); err == nil {
			continue // created; re-read to share the stored instance
		}
	}
}
