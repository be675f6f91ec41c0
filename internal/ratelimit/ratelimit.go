package ratelimit

import (
	"sync"
	"time"
)

// Limiter gates connection attempts per client key (an IP address).
type Limiter interface {
	Allow(key string) bool
}

// SlidingWindow tracks attempt timestamps per key within a sliding
// window, entirely in process memory.
type SlidingWindow struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	max     int
	window  time.Duration
}

// NewSlidingWindow creates a limiter allowing max attempts per window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		entries: make(map[string][]time.Time),
		max:     max,
		window:  window,
	}
}

// Allow returns true if the key has not exceeded the limit. If allowed,
// the attempt is recorded.
func (l *SlidingWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	timestamps := l.entries[key]
	valid := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.max {
		l.entries[key] = valid
		return false
	}

	l.entries[key] = append(valid, now)
	return true
}
