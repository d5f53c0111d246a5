package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window admission control keyed by operation name.
// It is advisory: a rejected call is expected to be served by a fallback.
type Limiter struct {
	mu      sync.Mutex
	budget  int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

// New creates a limiter admitting at most budget calls per key within window.
func New(budget int, window time.Duration) *Limiter {
	return &Limiter{
		budget:  budget,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// Allow purges timestamps older than the window and admits the call when the
// remaining count is below the budget. The timestamp is recorded only on admission.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.purge(key, now)
	if len(stamps) >= l.budget {
		return false
	}

	l.windows[key] = append(stamps, now)
	return true
}

// Remaining returns how many calls the key may still make in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.budget - len(l.purge(key, l.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns how long until the oldest timestamp of a saturated key
// ages out, zero when the key has budget left.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.purge(key, now)
	if len(stamps) < l.budget || len(stamps) == 0 {
		return 0
	}
	return stamps[0].Add(l.window).Sub(now)
}

// Reset forgets all recorded timestamps.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
}

// purge must be called with mu held.
func (l *Limiter) purge(key string, now time.Time) []time.Time {
	stamps := l.windows[key]
	cutoff := now.Add(-l.window)

	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}

	kept := append([]time.Time(nil), stamps[idx:]...)
	if len(kept) == 0 {
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = kept
	return kept
}
