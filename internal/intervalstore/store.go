// Package intervalstore layers time-keyed values on top of an
// interval.Set that tracks which ranges of the key space are fully known.
// A query on a range either returns every stored value in that range (when
// the range is entirely covered by known intervals) or reports the
// sub-ranges still missing, so the caller can go fetch them.
package intervalstore

import (
	"fmt"
	"sort"

	"github.com/illicitonion/timetravel/internal/interval"
)

// TimeValue is anything that can be stored in a Store: it carries its own
// ordering key.
type TimeValue[K interval.Ordered] interface {
	Time() K
}

// ConflictError is returned by Insert when the new values disagree with
// values already known for an overlapping range. The store is left
// unchanged when this is returned.
type ConflictError struct {
	// Lo, Hi describe the overlapping sub-range (formatted, since the key
	// type varies by instantiation and error values can't carry a type
	// parameter of their own).
	Lo, Hi string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("intervalstore: conflicting values in overlapping range [%s,%s]", e.Lo, e.Hi)
}

// Store holds a known-coverage interval.Set and a deduplicated, ordered
// collection of values. Every stored value's Time() is guaranteed to fall
// within some known interval; a known-but-empty interval is legal and
// means "there are definitely no values in here".
//
// Store is not safe for concurrent use; callers that need concurrent
// access (the timeline cache) wrap it in their own lock.
type Store[K interval.Ordered, V TimeValue[K]] struct {
	known  *interval.Set[K]
	values []V // always kept sorted ascending by Time(), deduped
}

// New returns an empty Store.
func New[K interval.Ordered, V TimeValue[K]]() *Store[K, V] {
	return &Store[K, V]{known: interval.NewSet[K]()}
}

// Has reports whether i is fully covered by known intervals.
func (s *Store[K, V]) Has(i interval.Interval[K]) bool {
	return s.known.Contains(i)
}

// Missing returns the sub-ranges of i not yet known.
func (s *Store[K, V]) Missing(i interval.Interval[K]) *interval.Set[K] {
	return s.known.Missing(i)
}

// KnownSet returns a copy of the canonical known-coverage set, for
// diagnostics (see internal/cachecheck). It is not used by any of the
// store's own operations, which go through Has/Missing/Get instead.
func (s *Store[K, V]) KnownSet() *interval.Set[K] {
	return interval.NewSet(s.known.Iter()...)
}

// All returns a copy of every stored value, ascending by Time(). Like
// KnownSet, this exists for diagnostics, not for the store's own logic.
func (s *Store[K, V]) All() []V {
	out := make([]V, len(s.values))
	copy(out, s.values)
	return out
}

// Get returns the values in i, ascending by Time(), if i is fully known.
// The second return value is false if i is not (yet) fully covered, in
// which case the caller should consult Missing to find out what to fetch.
// An empty, non-nil slice is a legitimate "found" answer: it asserts
// "we've enumerated this range and there's nothing here".
func (s *Store[K, V]) Get(i interval.Interval[K]) ([]V, bool) {
	if !s.Has(i) {
		return nil, false
	}

	lo := sort.Search(len(s.values), func(n int) bool {
		return s.values[n].Time() >= i.Lo
	})
	hi := sort.Search(len(s.values), func(n int) bool {
		return s.values[n].Time() > i.Hi
	})

	out := make([]V, hi-lo)
	copy(out, s.values[lo:hi])
	return out, true
}

// Insert extends the known-coverage set by i and merges values into the
// store. For every existing known interval overlapping i, the values
// already on record within the overlap must match the new values within
// the overlap exactly, or the whole insert is rejected with a
// ConflictError and the store is left byte-for-byte unchanged.
func (s *Store[K, V]) Insert(i interval.Interval[K], values []V) error {
	sorted := append([]V(nil), values...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Time() < sorted[b].Time() })
	sorted = dedupAdjacent(sorted)
	// Values outside i are dropped: only i becomes known, and every stored
	// value must lie inside a known interval.
	sorted = valuesIn(sorted, i)

	for _, overlap := range s.known.Intersecting(i).Iter() {
		lo, hi := overlap.Lo, overlap.Hi
		if i.Lo > lo {
			lo = i.Lo
		}
		if i.Hi < hi {
			hi = i.Hi
		}
		o := interval.New(lo, hi)

		existing := valuesIn(s.values, o)
		incoming := valuesIn(sorted, o)
		if !equalByTime(existing, incoming) {
			return &ConflictError{Lo: fmt.Sprint(o.Lo), Hi: fmt.Sprint(o.Hi)}
		}
	}

	s.known.Insert(i)
	s.values = mergeByTime(s.values, sorted)
	return nil
}

func dedupAdjacent[K interval.Ordered, V TimeValue[K]](sorted []V) []V {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v.Time() == out[len(out)-1].Time() {
			continue
		}
		out = append(out, v)
	}
	return out
}

func valuesIn[K interval.Ordered, V TimeValue[K]](sorted []V, i interval.Interval[K]) []V {
	lo := sort.Search(len(sorted), func(n int) bool { return sorted[n].Time() >= i.Lo })
	hi := sort.Search(len(sorted), func(n int) bool { return sorted[n].Time() > i.Hi })
	return sorted[lo:hi]
}

func equalByTime[K interval.Ordered, V TimeValue[K]](a, b []V) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx].Time() != b[idx].Time() {
			return false
		}
	}
	return true
}

// mergeByTime merges two ascending, deduped-by-time slices into one
// ascending, deduped-by-time slice. Where both sides have a value for the
// same time key, the existing value wins (Insert has already verified any
// overlap agrees, so this is never a visible difference).
func mergeByTime[K interval.Ordered, V TimeValue[K]](existing, incoming []V) []V {
	out := make([]V, 0, len(existing)+len(incoming))
	i, j := 0, 0
	for i < len(existing) && j < len(incoming) {
		switch {
		case existing[i].Time() < incoming[j].Time():
			out = append(out, existing[i])
			i++
		case existing[i].Time() > incoming[j].Time():
			out = append(out, incoming[j])
			j++
		default:
			out = append(out, existing[i])
			i++
			j++
		}
	}
	out = append(out, existing[i:]...)
	out = append(out, incoming[j:]...)
	return out
}

// String is a debugging helper; it is not used for equality checks.
func (s *Store[K, V]) String() string {
	return fmt.Sprintf("Store{known=%v, values=%d}", s.known.Iter(), len(s.values))
}
