package fiber

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// multiLimiter keeps one token bucket per key and forgets keys idle for ttl.
// Idle keys are swept at most once per ttl.
type multiLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	entries   map[string]*limBucket
	lastSweep time.Time
	now       func() time.Time
}

type limBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newMultiLimiter(limit rate.Limit, burst int, ttl time.Duration) *multiLimiter {
	if burst < 1 {
		burst = 1
	}
	return &multiLimiter{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*limBucket),
		now:     time.Now,
	}
}

func (m *multiLimiter) allow(key string) bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.entries[key]
	if b == nil {
		b = &limBucket{lim: rate.NewLimiter(m.limit, m.burst), lastSeen: now}
		m.entries[key] = b
	}
	b.lastSeen = now

	if now.Sub(m.lastSweep) >= m.ttl {
		m.sweep(now)
	}
	return b.lim.AllowN(now, 1)
}

func (m *multiLimiter) sweep(now time.Time) {
	for k, v := range m.entries {
		if now.Sub(v.lastSeen) > m.ttl {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}
