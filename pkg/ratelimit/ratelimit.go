// Package ratelimit throttles the analysis endpoints per client. Each analysis
// runs transcription and classification, so a token bucket per client IP
// keeps one caller from monopolising the pipeline.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter with per-key tracking
type Limiter struct {
	rate       float64 // tokens per second
	burst      int
	clients    map[string]*bucket
	mu         sync.Mutex
	cleanupTTL time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLimiter creates a limiter and starts its stale-entry cleanup. Close stops it.
func NewLimiter(rate float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rate:       rate,
		burst:      burst,
		clients:    make(map[string]*bucket),
		cleanupTTL: 10 * time.Minute,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow spends one token for key and reports whether one was available
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Tokens returns the tokens currently available to key
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key).tokens
}

// RetryAfter is how long key must wait for its next token
func (l *Limiter) RetryAfter(key string) time.Duration {
	tokens := l.Tokens(key)
	if tokens >= 1 || l.rate <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / l.rate * float64(time.Second))
}

// ClientCount returns the number of tracked clients
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Close stops the cleanup goroutine
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// refill must be called with mu held
func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastUpdate: now}
		l.clients[key] = b
		return b
	}

	b.tokens += now.Sub(b.lastUpdate).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastUpdate = now
	return b
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.clients {
				if now.Sub(b.lastUpdate) > l.cleanupTTL {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
