package ratelimit

import (
	"sync"
	"time"
)

// Store is the in-process window cache. It is explicitly constructed and
// passed by reference into guards, never captured as implicit global
// state, so tests can substitute their own instance.
type Store interface {
	// Get returns the cached window for a key, if present
	Get(key string) (*Window, bool)
	// GetOrPut returns the existing window for a key, or stores and
	// returns the given one. The winner is the single window every
	// concurrent caller increments.
	GetOrPut(key string, window *Window) *Window
	// Sweep evicts windows that started before the cutoff and returns
	// how many were removed
	Sweep(cutoff time.Time) int
	// Len returns the number of cached windows
	Len() int
}

// MemoryStore is the default in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*Window
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*Window)}
}

// Get returns the cached window for a key
func (s *MemoryStore) Get(key string) (*Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[key]
	return w, ok
}

// GetOrPut returns the existing window or stores the given one
func (s *MemoryStore) GetOrPut(key string, window *Window) *Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.windows[key]; ok {
		return existing
	}
	s.windows[key] = window
	return window
}

// Sweep evicts windows that started before the cutoff
func (s *MemoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if w.WindowStart.Before(cutoff) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached windows
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}
