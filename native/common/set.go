package common

import "sort"

// Set is a tagged-variant set used in place of raw permission bitmasks.
type Set[T ~uint8] map[T]struct{}

// NewSet builds a set from the supplied members.
func NewSet[T ~uint8](members ...T) Set[T] {
	s := make(Set[T], len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set[T]) Has(member T) bool {
	if s == nil {
		return false
	}
	_, ok := s[member]
	return ok
}

// Add inserts the members.
func (s Set[T]) Add(members ...T) {
	for _, m := range members {
		s[m] = struct{}{}
	}
}

// Sorted returns the members in ascending order, the stable form used for
// persistence.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetFromSlice rebuilds a set from its persisted form.
func SetFromSlice[T ~uint8](members []T) Set[T] {
	return NewSet(members...)
}
