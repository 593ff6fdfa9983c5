// Copyright 2026 TRIP Verifier Project
//
// Per-key request throttling. The Verifier applies it per identity to
// breadcrumb submissions (Submit), so that a flood of breadcrumbs for a
// single identity is rejected instead of taking processing time from
// every other identity. All buckets live in one mutex-guarded map; the
// map is not sharded.

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles requests on a per-key basis using a token bucket per
// key. Keys are typically an identity ID or a relying-party API key.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	lastSeen map[string]time.Time
}

type bucket struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing requestsPerWindow requests per window
// seconds, sustained indefinitely, with bursts up to requestsPerWindow.
// A window of zero or fewer seconds disables limiting (Allow always
// returns true).
func New(requestsPerWindow, windowSeconds int) *Limiter {
	var rps rate.Limit
	if windowSeconds > 0 && requestsPerWindow > 0 {
		rps = rate.Limit(float64(requestsPerWindow) / float64(windowSeconds))
	}
	burst := requestsPerWindow
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		lastSeen: make(map[string]time.Time),
		rps:      rps,
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow reports whether a request for key is permitted right now,
// consuming a token if so. A disabled limiter (zero rate) always allows.
func (l *Limiter) Allow(key string) bool {
	if l.rps == 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	l.lastSeen[key] = time.Now()
	l.evictLocked()

	return b.limiter.Allow()
}

// evictLocked drops buckets that have been idle past idleTTL, bounding
// memory growth for a Verifier that observes a large, churning set of
// identities over its lifetime. Caller must hold l.mu.
func (l *Limiter) evictLocked() {
	if len(l.buckets) < 4096 {
		return
	}
	cutoff := time.Now().Add(-l.idleTTL)
	for key, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastSeen, key)
		}
	}
}

// Count returns the number of distinct keys currently tracked. Exposed
// for metrics and tests.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
