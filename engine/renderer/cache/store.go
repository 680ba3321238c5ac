package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store maps value keys to owned entries. With a positive capacity it is
// an LRU bound; otherwise it grows without limit. onEvict runs exactly once
// for every entry that leaves the store, whether by eviction, Remove or Purge.
type Store[K comparable, V any] struct {
	bounded *lru.Cache[K, V]
	m       map[K]V
	onEvict func(K, V)
}

func NewStore[K comparable, V any](capacity int, onEvict func(K, V)) (*Store[K, V], error) {
	s := &Store[K, V]{onEvict: onEvict}
	if capacity <= 0 {
		s.m = make(map[K]V)
		return s, nil
	}
	c, err := lru.NewWithEvict[K, V](capacity, onEvict)
	if err != nil {
		return nil, err
	}
	s.bounded = c
	return s, nil
}

// Get looks key up and marks it most recently used.
func (s *Store[K, V]) Get(key K) (V, bool) {
	if s.bounded != nil {
		return s.bounded.Get(key)
	}
	v, ok := s.m[key]
	return v, ok
}

// Add inserts a new entry. It may evict the least recently used one.
func (s *Store[K, V]) Add(key K, value V) {
	if s.bounded != nil {
		s.bounded.Add(key, value)
		return
	}
	s.m[key] = value
}

func (s *Store[K, V]) Remove(key K) bool {
	if s.bounded != nil {
		return s.bounded.Remove(key)
	}
	v, ok := s.m[key]
	if !ok {
		return false
	}
	delete(s.m, key)
	if s.onEvict != nil {
		s.onEvict(key, v)
	}
	return true
}

// RemoveFunc removes every entry for which match returns true.
func (s *Store[K, V]) RemoveFunc(match func(K, V) bool) int {
	n := 0
	for _, k := range s.Keys() {
		var v V
		var ok bool
		if s.bounded != nil {
			v, ok = s.bounded.Peek(k)
		} else {
			v, ok = s.m[k]
		}
		if ok && match(k, v) && s.Remove(k) {
			n++
		}
	}
	return n
}

func (s *Store[K, V]) Keys() []K {
	if s.bounded != nil {
		return s.bounded.Keys()
	}
	keys := make([]K, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store[K, V]) Len() int {
	if s.bounded != nil {
		return s.bounded.Len()
	}
	return len(s.m)
}

// Purge removes every entry.
func (s *Store[K, V]) Purge() {
	if s.bounded != nil {
		s.bounded.Purge()
		return
	}
	for k := range s.m {
		s.Remove(k)
	}
}
