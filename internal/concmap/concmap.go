// Package concmap provides the concurrent containers shared by the catalog,
// the location recorder and the reference ledger.
//
// Contract: insert-if-absent is atomic per key, and list append is atomic per
// list. Locks are scoped to a single shard of a map or a single list, never
// to the whole structure, so unrelated symbols never contend.
package concmap

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// Map is a sharded string-keyed map. The zero value is not usable; call New.
type Map[V any] struct {
	shards [shardCount]shard[V]
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	return &m.shards[xxhash.Sum64String(key)%shardCount]
}

// GetOrCreate returns the value stored under key, calling create and storing
// its result if the key is absent. create runs under the shard lock, at most
// once per key.
func (m *Map[V]) GetOrCreate(key string, create func() V) V {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v
	}
	v = create()
	s.m[key] = v
	return v
}

// Load returns the value stored under key.
func (m *Map[V]) Load(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Len returns the number of keys.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns all keys in ascending byte order.
func (m *Map[V]) Keys() []string {
	var keys []string
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k := range s.m {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// List is a slice guarded by its own mutex.
type List[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewList returns an empty List. Suitable as a GetOrCreate constructor.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Append adds items as one atomic step.
func (l *List[T]) Append(items ...T) {
	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Snapshot returns a copy of the items in append order.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}
