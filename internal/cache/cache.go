package cache

import (
	"sync"
	"sync/atomic"
)

// Store is a thread-safe build-once map.
//
// Store must not be copied after creation (has mutex).
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	order   []K // insertion order, for deterministic Range

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewStore creates an empty store.
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		entries: make(map[K]V),
	}
}

// Get retrieves a value without building.
// Returns (value, true) if found, (zero, false) otherwise.
// Get does not touch the hit/miss counters.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	return v, ok
}

// GetOrBuild returns the stored value for key or builds it.
//
// The second return value reports whether build ran. build is called under
// the write lock and must not call back into the same store.
func (s *Store[K, V]) GetOrBuild(key K, build func() (V, error)) (V, bool, error) {
	// Fast path: read lock
	s.mu.RLock()
	if v, ok := s.entries[key]; ok {
		s.mu.RUnlock()
		s.hits.Add(1)
		return v, false, nil
	}
	s.mu.RUnlock()

	// Slow path: write lock with double-check
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok {
		s.hits.Add(1)
		return v, false, nil
	}

	s.misses.Add(1)
	v, err := build()
	if err != nil {
		var zero V
		return zero, true, err
	}
	s.entries[key] = v
	s.order = append(s.order, key)
	return v, true, nil
}

// Range calls fn for every entry in insertion order.
// The store is read-locked for the duration; fn must not modify it.
func (s *Store[K, V]) Range(fn func(key K, value V)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.order {
		fn(k, s.entries[k])
	}
}

// DeleteFunc removes every entry for which fn returns true and returns the
// removed values in insertion order. fn must not call back into the store.
func (s *Store[K, V]) DeleteFunc(fn func(key K, value V) bool) []V {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []V
	kept := s.order[:0]
	for _, k := range s.order {
		v := s.entries[k]
		if fn(k, v) {
			removed = append(removed, v)
			delete(s.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return removed
}

// Clear removes all entries and resets the counters.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[K]V)
	s.order = nil
	s.hits.Store(0)
	s.misses.Store(0)
}

// Len returns the number of entries in the store.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Stats returns store statistics.
func (s *Store[K, V]) Stats() Stats {
	return Stats{
		Len:    s.Len(),
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

// Stats contains store statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Hits is the number of lookups served from the store.
	Hits uint64
	// Misses is the number of lookups that ran a build, including failed
	// builds.
	Misses uint64
}

// HitRate returns hits / (hits + misses), or 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
