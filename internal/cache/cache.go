// SPDX-License-Identifier: MIT

// Package cache holds the run-scoped stores shared by the matcher, checker,
// fetcher and aggregator: normalised names, stream statuses, downloads,
// provider playlist snapshots and parsed playlists.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
)

// StoreStats holds per-store performance counters.
type StoreStats struct {
	Hits        int64 // Number of successful lookups
	Misses      int64 // Number of lookups that found nothing usable
	Adds        int64 // Number of values actually inserted
	CurrentSize int   // Current number of held entries
}

// memoryStore is a concurrent string-keyed map with add-if-absent writes.
type memoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]V

	hits   atomic.Int64
	misses atomic.Int64
	adds   atomic.Int64
}

func newMemoryStore[V any]() *memoryStore[V] {
	return &memoryStore[V]{entries: make(map[string]V)}
}

// get returns the held value. usable, when non-nil, can reject a held value
// so that it counts as a miss.
func (s *memoryStore[V]) get(key string, usable func(V) bool) (V, bool) {
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || (usable != nil && !usable(v)) {
		s.misses.Add(1)
		var zero V
		return zero, false
	}
	s.hits.Add(1)
	return v, true
}

// addIfAbsent stores v unless a usable value is already held, and returns the
// value that ends up stored.
func (s *memoryStore[V]) addIfAbsent(key string, v V, usable func(V) bool) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.entries[key]; ok && (usable == nil || usable(held)) {
		return held
	}
	s.entries[key] = v
	s.adds.Add(1)
	return v
}

// seed stores v unconditionally without counting it as a runtime add.
func (s *memoryStore[V]) seed(key string, v V) {
	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
}

// sorted returns the held values ordered by key.
func (s *memoryStore[V]) sorted() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.entries[k])
	}
	return out
}

func (s *memoryStore[V]) stats() StoreStats {
	s.mu.RLock()
	size := len(s.entries)
	s.mu.RUnlock()
	return StoreStats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Adds:        s.adds.Load(),
		CurrentSize: size,
	}
}
