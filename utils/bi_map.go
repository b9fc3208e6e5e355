// Package utils holds small generic containers shared across the module.
package utils

import (
	"fmt"
	"iter"
)

// BiMap is an immutable bidirectional lookup table.
// Both key and value types must be comparable.
type BiMap[K comparable, V comparable] struct {
	forward map[K]V
	reverse map[V]K
}

// NewBiMap copies input into a new BiMap. When several keys share a value
// the reverse lookup resolves to one of them, unspecified which.
func NewBiMap[K comparable, V comparable](input map[K]V) *BiMap[K, V] {
	m := &BiMap[K, V]{
		forward: make(map[K]V, len(input)),
		reverse: make(map[V]K, len(input)),
	}
	for k, v := range input {
		m.forward[k] = v
		m.reverse[v] = k
	}
	return m
}

// MustBiMap is like NewBiMap but panics if two keys share a value.
// It is meant for package-level lookup tables.
func MustBiMap[K comparable, V comparable](input map[K]V) *BiMap[K, V] {
	m := NewBiMap(input)
	if len(m.reverse) != len(m.forward) {
		panic(fmt.Sprintf("utils: %d keys map onto %d distinct values", len(m.forward), len(m.reverse)))
	}
	return m
}

// Lookup finds the value stored under key.
func (m *BiMap[K, V]) Lookup(key K) (V, bool) {
	v, ok := m.forward[key]
	return v, ok
}

// DirectLookup is Lookup returning the zero value for a missing key.
func (m *BiMap[K, V]) DirectLookup(key K) V {
	return m.forward[key]
}

// RLookup finds the key that maps to value.
func (m *BiMap[K, V]) RLookup(value V) (K, bool) {
	k, ok := m.reverse[value]
	return k, ok
}

// DirectRLookup is RLookup returning the zero value for a missing value.
func (m *BiMap[K, V]) DirectRLookup(value V) K {
	return m.reverse[value]
}

// Len returns the number of keys.
func (m *BiMap[K, V]) Len() int {
	return len(m.forward)
}

// All iterates over the forward mapping in no particular order.
func (m *BiMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.forward {
			if !yield(k, v) {
				return
			}
		}
	}
}
