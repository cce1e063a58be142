// Package interval implements a closed, inclusive interval over any
// ordered type, and a canonical set of non-overlapping intervals built on
// top of it. It is the bottom layer of the timeline cache: everything
// above it (intervalstore, timeline) reasons about "known coverage" in
// terms of these two types.
package interval

// Ordered is the set of types an Interval can be built over. The cache
// only ever instantiates this with Snowflake (a uint64), but the type is
// kept generic so the interval/intervalstore packages have no dependency
// on the timeline package.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Interval is an ordered pair (Lo, Hi) with both endpoints inclusive.
// Callers are expected to construct it through New, which enforces
// Lo <= Hi.
type Interval[T Ordered] struct {
	Lo, Hi T
}

// New builds an Interval, swapping endpoints if necessary so that
// Lo <= Hi always holds.
func New[T Ordered](lo, hi T) Interval[T] {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Interval[T]{Lo: lo, Hi: hi}
}

// Contains reports whether t falls within the closed range [Lo, Hi].
func (i Interval[T]) Contains(t T) bool {
	return i.Lo <= t && t <= i.Hi
}

// ContainsInterval reports whether other is entirely within i.
func (i Interval[T]) ContainsInterval(other Interval[T]) bool {
	return i.Contains(other.Lo) && i.Contains(other.Hi)
}

// Intersects reports whether either of other's endpoints lies within i.
//
// This is intentionally asymmetric: it only tests whether one of other's
// endpoints lies in i, not the reverse. [0,100].Intersects([50,60]) is
// true but [50,60].Intersects([0,100]) is false under this definition.
// Set.Missing does not use it; its cursor-walk compares endpoints
// directly. Callers that want "do these two
// intervals overlap at all", such as Set.Insert and Set.Intersecting,
// must test both directions themselves; a strict, non-touching
// containment (e.g. [5,25] wholly containing [10,20]) only shows up from
// one side.
func (i Interval[T]) Intersects(other Interval[T]) bool {
	return i.Contains(other.Lo) || i.Contains(other.Hi)
}

// Equal reports whether i and other describe the same range.
func (i Interval[T]) Equal(other Interval[T]) bool {
	return i.Lo == other.Lo && i.Hi == other.Hi
}
