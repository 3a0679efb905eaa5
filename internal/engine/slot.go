package engine

import (
	"maps"
	"slices"
	"sync/atomic"
)

// Slot holds one collection as an immutable snapshot. A nil pointer means
// the slot was never populated. Writers build a new slice and swap it in;
// readers never observe a partially updated collection.
type Slot[T any] struct {
	p atomic.Pointer[[]T]
}

// Load returns a copy of the snapshot and whether the slot is populated.
func (s *Slot[T]) Load() ([]T, bool) {
	cur := s.p.Load()
	if cur == nil {
		return nil, false
	}
	return slices.Clone(*cur), true
}

// Store replaces the snapshot with a copy of items.
func (s *Slot[T]) Store(items []T) {
	next := slices.Clone(items)
	if next == nil {
		next = []T{}
	}
	s.p.Store(&next)
}

// Update applies fn to the current snapshot with compare-and-swap, retrying
// when another writer got in first so no update is lost. fn must not modify
// its argument. It reports false, without calling fn, when the slot is cold.
func (s *Slot[T]) Update(fn func(cur []T) []T) bool {
	for {
		cur := s.p.Load()
		if cur == nil {
			return false
		}
		next := fn(slices.Clip(*cur))
		if s.p.CompareAndSwap(cur, &next) {
			return true
		}
	}
}

// Reset marks the slot as unpopulated.
func (s *Slot[T]) Reset() {
	s.p.Store(nil)
}

// MapSlot is a Slot keyed by K, used for per-user collections.
type MapSlot[K comparable, V any] struct {
	p atomic.Pointer[map[K]V]
}

// Get returns the value for k and whether it is present.
func (m *MapSlot[K, V]) Get(k K) (V, bool) {
	cur := m.p.Load()
	if cur == nil {
		var zero V
		return zero, false
	}
	v, ok := (*cur)[k]
	return v, ok
}

// Put sets the value for k.
func (m *MapSlot[K, V]) Put(k K, v V) {
	m.Update(k, func(V, bool) (V, bool) { return v, true })
}

// Update replaces the value for k with fn's result using compare-and-swap.
// Returning false from fn deletes the key.
func (m *MapSlot[K, V]) Update(k K, fn func(cur V, ok bool) (V, bool)) {
	for {
		cur := m.p.Load()
		var next map[K]V
		var old V
		var present bool
		if cur == nil {
			next = make(map[K]V, 1)
		} else {
			next = maps.Clone(*cur)
			old, present = (*cur)[k]
		}
		if v, keep := fn(old, present); keep {
			next[k] = v
		} else {
			delete(next, k)
		}
		if m.p.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// Delete removes k.
func (m *MapSlot[K, V]) Delete(k K) {
	m.Update(k, func(V, bool) (V, bool) {
		var zero V
		return zero, false
	})
}

// Reset drops every key.
func (m *MapSlot[K, V]) Reset() {
	m.p.Store(nil)
}
