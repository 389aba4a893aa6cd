package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// one message per second sustained, short bursts allowed
	sendRate  = rate.Limit(1)
	sendBurst = 5

	// limiters idle longer than this get evicted on the next sweep
	limiterIdleTTL = 10 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// sessionLimiter rate limits message writes per browsing session to keep
// a single misbehaving sender from flooding the channel. Entries for
// sessions that stopped sending are swept out lazily so the map does not
// grow without bound.
type sessionLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

func newSessionLimiter() *sessionLimiter {
	return &sessionLimiter{
		limiters:  make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (sl *sessionLimiter) allow(key string) bool {
	now := time.Now()

	sl.mu.Lock()
	if now.Sub(sl.lastSweep) > limiterIdleTTL {
		sl.sweepLocked(now)
	}

	e, ok := sl.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(sendRate, sendBurst)}
		sl.limiters[key] = e
	}
	e.lastSeen = now
	sl.mu.Unlock()

	return e.lim.Allow()
}

func (sl *sessionLimiter) sweepLocked(now time.Time) {
	for key, e := range sl.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(sl.limiters, key)
		}
	}
	sl.lastSweep = now
}
