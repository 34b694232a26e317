// Package ratelimit applies a per-client token bucket to incoming requests.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleTTL = 5 * time.Minute

// Keyed tracks one token bucket per client key. Buckets idle for longer than
// the configured TTL are dropped by a background sweeper so short-lived
// clients do not accumulate forever. A nil *Keyed allows everything, which
// lets callers disable limiting without branching.
type Keyed struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a keyed limiter allowing perSecond sustained requests with the
// given burst per key. Returns nil when the arguments disable limiting.
func New(perSecond float64, burst int, idleTTL time.Duration) *Keyed {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	k := &Keyed{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     idleTTL,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go k.run()
	return k
}

// Allow reports whether the key may consume one token now. Empty keys bypass
// limiting entirely.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	now := time.Now()

	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	if k == nil {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Stop terminates the background sweeper. Safe to call more than once and on
// a nil limiter.
func (k *Keyed) Stop() {
	if k == nil {
		return
	}
	k.stopOnce.Do(func() {
		close(k.stop)
	})
}

func (k *Keyed) run() {
	ticker := time.NewTicker(k.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case now := <-ticker.C:
			k.sweep(now)
		}
	}
}

func (k *Keyed) sweep(now time.Time) {
	cutoff := now.Add(-k.ttl)
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, b := range k.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(k.buckets, key)
		}
	}
}
