// Package cache holds the per-run memo tables shared by export jobs. Every
// table has its own lock and is emptied at the start of each run.
package cache

import "sync"

// Store memoises values by key.
type Store[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
}

// NewStore returns an empty store.
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

// Get returns the value stored for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Put stores v under key, replacing any earlier value.
func (s *Store[K, V]) Put(key K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = v
}

// PutIfAbsent stores v unless key is present and returns the value that ends
// up in the store together with whether it was already there.
func (s *Store[K, V]) PutIfAbsent(key K, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	s.items[key] = v
	return v, false
}

// Compute returns the stored value for key or, on a miss, calls fn while
// holding the store's lock and keeps its result. Concurrent callers for the
// same store wait, so each key is computed at most once per run. Errors are
// returned and nothing is stored.
func (s *Store[K, V]) Compute(key K, fn func() (V, error)) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}
	s.items[key] = v
	return v, nil
}

// Len reports the number of entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Reset drops every entry.
func (s *Store[K, V]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[K]V)
}

// Set is a keyed membership table.
type Set[K comparable] struct {
	mu    sync.Mutex
	items map[K]struct{}
}

// NewSet returns an empty set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{items: make(map[K]struct{})}
}

// Add inserts key and reports whether it was newly added.
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}
	return true
}

// Has reports whether key is present.
func (s *Set[K]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Len reports the number of members.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Reset drops every member.
func (s *Set[K]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[K]struct{})
}
