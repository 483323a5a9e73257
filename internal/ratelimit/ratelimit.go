// Package ratelimit implements the per-client-IP read-API rate limiter
// spec.md §4.I requires. Grounded on the upstream client's use of
// golang.org/x/time/rate, applied here per-IP instead of per-endpoint, with
// a bounded, TTL-swept map so a long-lived process doesn't accumulate one
// limiter per IP forever.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
}

// PerIP is a bounded map of per-IP token-bucket limiters.
type PerIP struct {
	mu       sync.Mutex
	entries  map[string]*entry
	rps      float64
	burst    int
	maxSize  int
	idleTTL  time.Duration
}

func New(rps float64, burst, maxSize int, idleTTL time.Duration) *PerIP {
	if maxSize <= 0 {
		maxSize = 10_000
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &PerIP{
		entries: make(map[string]*entry),
		rps:     rps,
		burst:   burst,
		maxSize: maxSize,
		idleTTL: idleTTL,
	}
}

// Allow reports whether a request from ip may proceed, lazily creating that
// IP's limiter on first sight.
func (p *PerIP) Allow(ip string) bool {
	p.mu.Lock()
	e, ok := p.entries[ip]
	if !ok {
		if len(p.entries) >= p.maxSize {
			p.evictOldestLocked()
		}
		e = &entry{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.entries[ip] = e
	}
	e.lastSeen = time.Now()
	allowed := e.limiter.Allow()
	p.mu.Unlock()
	return allowed
}

func (p *PerIP) evictOldestLocked() {
	var oldestIP string
	var oldestAt time.Time
	for ip, e := range p.entries {
		if oldestIP == "" || e.lastSeen.Before(oldestAt) {
			oldestIP = ip
			oldestAt = e.lastSeen
		}
	}
	if oldestIP != "" {
		delete(p.entries, oldestIP)
	}
}

// Sweep removes entries idle for longer than idleTTL, intended to run on
// the same timer as the store's prune job.
func (p *PerIP) Sweep() int {
	cutoff := time.Now().Add(-p.idleTTL)
	removed := 0
	p.mu.Lock()
	for ip, e := range p.entries {
		if e.lastSeen.Before(cutoff) {
			delete(p.entries, ip)
			removed++
		}
	}
	p.mu.Unlock()
	return removed
}
