package util

import (
	"cmp"
	"slices"
)

// Set is a generic set of comparable values
type Set[K comparable] map[K]struct{}

// SetOf creates a set containing the given elements
func SetOf[K comparable](elements ...K) Set[K] {
	s := make(Set[K], len(elements))
	for _, elem := range elements {
		s[elem] = struct{}{}
	}
	return s
}

// Add inserts an element
func (s Set[K]) Add(key K) {
	s[key] = struct{}{}
}

// Remove deletes an element
func (s Set[K]) Remove(key K) {
	delete(s, key)
}

// Contains reports whether the element is present
func (s Set[K]) Contains(key K) bool {
	_, ok := s[key]
	return ok
}

// Len returns the number of elements
func (s Set[K]) Len() int {
	return len(s)
}

// IsEmpty returns true if the set has no elements
func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}

// SortedKeys returns the elements of an ordered set in ascending order
func SortedKeys[K cmp.Ordered](s Set[K]) []K {
	res := make([]K, 0, len(s))
	for k := range s {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}
