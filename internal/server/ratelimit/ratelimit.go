// Package ratelimit provides per-client request limiting using the token
// bucket algorithm. The tailoring endpoint fronts generation backends, so an
// unthrottled client can run up real costs.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	Enabled bool
	// Limit is the sustained number of requests per Window
	Limit  int
	Window time.Duration
	// Burst is the bucket capacity; zero means Limit
	Burst int
	// CleanupInterval controls how often idle client buckets are dropped
	CleanupInterval time.Duration
}

// DefaultConfig allows a modest sustained rate with a small burst
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Limit:           60,
		Window:          time.Minute,
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

// Info describes the limiter's view of one client after a check
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

// Limiter tracks a token bucket per client ID
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  Config
	stop    chan struct{}
}

// NewLimiter creates a limiter and starts its idle-bucket cleanup loop
func NewLimiter(config Config) *Limiter {
	if config.Burst <= 0 {
		config.Burst = config.Limit
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow checks whether a request from the given client may proceed, consuming
// one token when it may.
func (l *Limiter) Allow(clientID string) (bool, Info) {
	if !l.config.Enabled || l.config.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: float64(l.config.Burst), lastRefill: now}
		l.buckets[clientID] = b
	}

	refillRate := float64(l.config.Limit) / l.config.Window.Seconds()
	b.tokens = min(float64(l.config.Burst), b.tokens+now.Sub(b.lastRefill).Seconds()*refillRate)
	b.lastRefill = now
	b.lastAccess = now

	allowed := b.tokens >= 1.0
	if allowed {
		b.tokens -= 1.0
	}

	info := Info{
		Allowed:   allowed,
		Limit:     l.config.Limit,
		Remaining: int(b.tokens),
	}
	if b.tokens < float64(l.config.Burst) {
		secondsUntilFull := (float64(l.config.Burst) - b.tokens) / refillRate
		info.ResetTime = now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
	} else {
		info.ResetTime = now
	}
	if !allowed {
		info.RetryAfter = time.Duration((1.0 - b.tokens) / refillRate * float64(time.Second))
	}
	return allowed, info
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropIdle(time.Now().Add(-time.Hour))
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) dropIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}

// Stop halts the cleanup loop
func (l *Limiter) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
}
