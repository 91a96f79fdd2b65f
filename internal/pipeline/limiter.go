package pipeline

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// warnLimiter bounds how often one source may produce a warning. Counts are
// kept per fixed window and dropped when the window rolls over.
type warnLimiter struct {
	mu           sync.Mutex
	current      map[netip.Addr]int
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int

	suppressed atomic.Int64
}

// newWarnLimiter returns nil when maxPerWindow <= 0; a nil limiter allows
// everything.
func newWarnLimiter(maxPerWindow int, window time.Duration) *warnLimiter {
	if maxPerWindow <= 0 {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &warnLimiter{
		current:      make(map[netip.Addr]int),
		windowSize:   window,
		maxPerWindow: maxPerWindow,
	}
}

// Allow reports whether src may log another warning at now.
func (l *warnLimiter) Allow(src netip.Addr, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.windowStart) >= l.windowSize {
		clear(l.current)
		l.windowStart = now
	}
	l.current[src]++
	if l.current[src] > l.maxPerWindow {
		l.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the number of warnings withheld so far.
func (l *warnLimiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}

// Sources returns the number of sources seen in the current window.
func (l *warnLimiter) Sources() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
