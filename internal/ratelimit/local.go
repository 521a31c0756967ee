package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localIdleTTL = 10 * time.Minute

// LocalLimiter is an in-process token bucket per key. It backs single-node
// deployments and the CLI where no Redis is configured.
type LocalLimiter struct {
	every rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows limit requests per window per key, with bursts of
// up to limit.
func NewLocalLimiter(limit int, window time.Duration) (*LocalLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &LocalLimiter{
		every:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}, nil
}

// Allow consumes one token for key.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdleTTL {
			delete(l.buckets, k)
		}
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}
