package ratelimit

import (
	"sync"
	"time"
)

// Set hands out one fixed-interval limiter per key, so throttling one catalog
// never delays calls to another.
type Set struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewSet creates a Set whose limiters allow one call per interval.
func NewSet(interval time.Duration) *Set {
	return &Set{
		interval: interval,
		limiters: make(map[string]*Limiter),
	}
}

// For returns the limiter for key, creating it on first use.
func (s *Set) For(key string) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[key]
	if !ok {
		limiter = NewEvery(key, s.interval)
		s.limiters[key] = limiter
	}
	return limiter
}

// Interval returns the per-key spacing between calls.
func (s *Set) Interval() time.Duration {
	return s.interval
}
