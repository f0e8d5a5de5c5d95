// Package ratelimit is a keyed token bucket used to throttle forced refreshes per client.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdle is how long a key may go unused before its bucket is dropped.
const DefaultIdle = 10 * time.Minute

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter holds one token bucket per key. Buckets idle for longer than the
// idle window and already refilled to capacity are evicted.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	now       func() time.Time
	idle      time.Duration
	lastSweep time.Time
}

// New returns a Limiter on the wall clock.
func New() *Limiter { return NewWithClock(time.Now) }

// NewWithClock returns a Limiter reading time from now.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{m: make(map[string]*entry), now: now, idle: DefaultIdle}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(refillPerSec), int(capacity))}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// sweep runs at most once per idle window. A full bucket behaves exactly like
// a new one, so dropping it loses no state.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.seen) >= l.idle && e.lim.TokensAt(now) >= float64(e.lim.Burst()) {
			delete(l.m, k)
		}
	}
}
