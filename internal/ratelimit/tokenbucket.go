// Package ratelimit provides the per-subscriber token bucket used by the broadcaster.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a floating-point token bucket with monotonic-clock refill.
// Zero value is not usable; construct with New.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

// New creates a bucket starting full at capacity, refilling at refillRate tokens/sec.
func New(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// TryConsume attempts to remove n tokens atomically. It refills based on elapsed
// monotonic time since the last call, then succeeds only if enough tokens are
// available; there is no partial consumption and no borrowing against future refill.
func (b *TokenBucket) TryConsume(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now

	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// Tokens returns the current token count, refilling first. Intended for metrics/tests.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}
	return b.tokens
}
