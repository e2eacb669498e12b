package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// WindowStart returns the fixed bucket start for a timestamp:
// floor(now/window)*window. Every request in the same bucket shares the
// same start, which makes the (identifier, windowStart) key idempotent.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// WindowKey builds the cache key for one identifier's current bucket
func WindowKey(identifier string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%d", identifier, windowStart.UnixMilli())
}

// Window tracks one identifier's request count within one fixed bucket
type Window struct {
	Identifier  string
	WindowStart time.Time

	mu          sync.Mutex
	count       int64
	lastRequest time.Time
}

// NewWindow creates a window seeded with a count (typically hydrated
// from the durable store)
func NewWindow(identifier string, windowStart time.Time, seed int64) *Window {
	return &Window{
		Identifier:  identifier,
		WindowStart: windowStart,
		count:       seed,
	}
}

// Take attempts to consume one request slot. The check and increment run
// under the window's lock so concurrent requests in one process never
// under-count.
func (w *Window) Take(limit int64, now time.Time) (count int64, allowed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count >= limit {
		return w.count, false
	}
	w.count++
	w.lastRequest = now
	return w.count, true
}

// Count returns the current request count
func (w *Window) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// LastRequest returns the time of the most recent taken request
func (w *Window) LastRequest() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRequest
}
