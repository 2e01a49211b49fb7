package app

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type tenantBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// tenantLimiter holds one token bucket per tenant. Buckets idle for longer
// than limiterIdleTTL are dropped on the next sweep.
type tenantLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*tenantBucket
	lastSweep time.Time
}

// newTenantLimiter returns nil when rps is not positive, which disables limiting.
func newTenantLimiter(rps, burst int) *tenantLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &tenantLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*tenantBucket),
	}
}

func (l *tenantLimiter) Allow(tenant string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for key, bucket := range l.buckets {
			if now.Sub(bucket.lastSeen) > limiterIdleTTL {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	bucket, ok := l.buckets[tenant]
	if !ok {
		bucket = &tenantBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[tenant] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *tenantLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
