package interval

import "sort"

// Set is a canonical collection of non-overlapping, non-touching
// intervals, kept in ascending order by Lo. Two intervals that merely
// touch at an endpoint (e.g. [5,10] and [10,20]) are merged on Insert, so
// the set is always the minimal representation of the union of everything
// ever inserted into it.
//
// The zero value is an empty set, ready to use.
type Set[T Ordered] struct {
	members []Interval[T]
}

// NewSet builds a Set containing the given intervals, merged and
// canonicalized.
func NewSet[T Ordered](intervals ...Interval[T]) *Set[T] {
	s := &Set[T]{}
	for _, i := range intervals {
		s.Insert(i)
	}
	return s
}

// Len returns the number of canonical members in the set.
func (s *Set[T]) Len() int {
	return len(s.members)
}

// Iter returns the members of the set in ascending order. The returned
// slice is owned by the caller and may be mutated freely.
func (s *Set[T]) Iter() []Interval[T] {
	out := make([]Interval[T], len(s.members))
	copy(out, s.members)
	return out
}

// Intersecting returns the subset of members that intersect i, in
// ascending order. Interval.Intersects is asymmetric (it only checks
// whether other's endpoints fall in the receiver), so both directions are
// tested here to also catch a member strictly contained in i.
func (s *Set[T]) Intersecting(i Interval[T]) *Set[T] {
	out := &Set[T]{}
	for _, m := range s.members {
		if m.Intersects(i) || i.Intersects(m) {
			out.members = append(out.members, m)
		}
	}
	return out
}

// Contains reports whether some single member of the set fully contains
// i. Spanning coverage across multiple adjacent members is impossible
// here because touching members are always merged by Insert, so "some
// member contains i" and "i is covered by the union" coincide.
func (s *Set[T]) Contains(i Interval[T]) bool {
	idx := sort.Search(len(s.members), func(n int) bool {
		return s.members[n].Hi >= i.Lo
	})
	if idx == len(s.members) {
		return false
	}
	return s.members[idx].ContainsInterval(i)
}

// Insert adds i to the set, widening and removing any members it
// intersects, then re-inserting the merged range. Insertion of an
// interval already contained in the set is a no-op.
func (s *Set[T]) Insert(i Interval[T]) {
	lo, hi := i.Lo, i.Hi

	remaining := s.members[:0:0]
	for _, m := range s.members {
		if !m.Intersects(i) && !i.Intersects(m) {
			remaining = append(remaining, m)
			continue
		}
		if m.ContainsInterval(i) {
			return
		}
		if m.Lo < lo {
			lo = m.Lo
		}
		if m.Hi > hi {
			hi = m.Hi
		}
	}

	merged := New(lo, hi)
	pos := sort.Search(len(remaining), func(n int) bool {
		return remaining[n].Lo > merged.Lo
	})
	remaining = append(remaining, Interval[T]{})
	copy(remaining[pos+1:], remaining[pos:])
	remaining[pos] = merged

	s.members = remaining
}

// Missing returns the sub-ranges of i not covered by any member of the
// set, as a new canonical Set. The algorithm walks members in ascending
// order with a moving cursor starting at i.Lo. A member that merely
// touches i.Hi does not cover it from the cursor's side: with {[10,20]}
// in the set, Missing([5,10]) is {[5,10]}, while Missing([15,25]) is
// {[20,25]}.
func (s *Set[T]) Missing(i Interval[T]) *Set[T] {
	out := &Set[T]{}
	cursor := i.Lo

	for _, m := range s.members {
		if m.Hi < i.Lo {
			continue
		}
		if m.Lo > i.Hi {
			break
		}
		if m.Lo <= cursor && cursor <= m.Hi {
			cursor = m.Hi
			continue
		}
		if cursor < m.Lo {
			hi := m.Lo
			if i.Hi < hi {
				hi = i.Hi
			}
			out.members = append(out.members, New(cursor, hi))
			cursor = m.Hi
		}
	}

	if cursor < i.Hi {
		out.members = append(out.members, New(cursor, i.Hi))
	}

	return out
}

// Equal reports whether s and other represent the same canonical set of
// intervals.
func (s *Set[T]) Equal(other *Set[T]) bool {
	if other == nil {
		return len(s.members) == 0
	}
	if len(s.members) != len(other.members) {
		return false
	}
	for idx, m := range s.members {
		if !m.Equal(other.members[idx]) {
			return false
		}
	}
	return true
}
