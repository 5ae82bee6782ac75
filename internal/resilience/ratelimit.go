package resilience

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// RateLimitConfig describes every bucket created by a Limiter.
type RateLimitConfig struct {
	Capacity        float64 `mapstructure:"capacity"`
	RefillPerSecond float64 `mapstructure:"refill-per-second"`
}

// DefaultRateLimitConfig allows short bursts of ten calls and one call per second afterwards.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Capacity: 10, RefillPerSecond: 1}
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Limiter keeps one token bucket per key. Buckets start full.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a limiter. Non-positive capacity falls back to the default.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	def := DefaultRateLimitConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.RefillPerSecond < 0 {
		cfg.RefillPerSecond = 0
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token for key or returns ErrRateLimited.
func (l *Limiter) Allow(key string) error {
	b := l.bucket(key)
	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	l.refill(b, now)
	if b.tokens < 1 {
		return fmt.Errorf("%w for %q", ErrRateLimited, key)
	}
	b.tokens--
	return nil
}

// Remaining reports the tokens currently available for key.
func (l *Limiter) Remaining(key string) float64 {
	b := l.bucket(key)
	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	l.refill(b, now)
	return b.tokens
}

// Reset forgets every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.Capacity, lastRefill: l.now()}
		l.buckets[key] = b
	}
	return b
}

// refill must be called with b.mu held.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(l.cfg.Capacity, b.tokens+elapsed*l.cfg.RefillPerSecond)
	b.lastRefill = now
}
