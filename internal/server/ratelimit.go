package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token-bucket limiter per client IP. Entries idle
// for over an hour are dropped by a background sweep so the map cannot grow
// without bound.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &clientLimiter{
		clients:   make(map[string]*clientEntry),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request from the client may proceed now.
func (c *clientLimiter) Allow(clientIP string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.clients[clientIP] = entry
	}
	entry.lastSeen = now

	if now.Sub(c.lastSweep) > time.Hour {
		c.sweepLocked(now)
	}

	return entry.limiter.Allow()
}

// sweepLocked drops entries not seen within the last hour.
func (c *clientLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	for ip, entry := range c.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(c.clients, ip)
		}
	}
	c.lastSweep = now
}
