package interval

import "testing"

func ints(pairs ...[2]int) *Set[int] {
	s := &Set[int]{}
	for _, p := range pairs {
		s.Insert(New(p[0], p[1]))
	}
	return s
}

func assertMissing(t *testing.T, s *Set[int], query [2]int, want ...[2]int) {
	t.Helper()
	got := s.Missing(New(query[0], query[1]))
	wantSet := ints(want...)
	if !got.Equal(wantSet) {
		t.Errorf("Missing(%v) = %v, want %v", query, got.Iter(), wantSet.Iter())
	}
}

func TestMissingMultiGap(t *testing.T) {
	s := ints([2]int{5, 10}, [2]int{20, 30})
	assertMissing(t, s, [2]int{1, 40}, [2]int{1, 5}, [2]int{10, 20}, [2]int{30, 40})
}

func TestMissingTouching(t *testing.T) {
	s := ints([2]int{10, 20})
	assertMissing(t, s, [2]int{5, 10}, [2]int{5, 10})
	assertMissing(t, s, [2]int{15, 25}, [2]int{20, 25})
	assertMissing(t, s, [2]int{12, 15})
}

func TestMissingNone(t *testing.T) {
	s := ints([2]int{10, 20})
	assertMissing(t, s, [2]int{10, 20})
	assertMissing(t, s, [2]int{12, 15})
}

func TestMissingLowerUpper(t *testing.T) {
	s := ints([2]int{10, 20})
	assertMissing(t, s, [2]int{5, 15}, [2]int{5, 10})
	assertMissing(t, s, [2]int{15, 25}, [2]int{20, 25})
}

func TestContainsEmpty(t *testing.T) {
	s := &Set[int]{}
	if s.Contains(New(10, 20)) {
		t.Error("empty set should not contain anything")
	}
}

func TestContainsPartial(t *testing.T) {
	s := ints([2]int{10, 15})
	if s.Contains(New(10, 20)) {
		t.Error("[10,15] should not contain [10,20]")
	}
}

func TestContainsExactAndWider(t *testing.T) {
	s := ints([2]int{10, 20})
	if !s.Contains(New(10, 20)) {
		t.Error("set should contain its own member exactly")
	}
	s2 := ints([2]int{5, 25})
	if !s2.Contains(New(10, 20)) {
		t.Error("[5,25] should contain [10,20]")
	}
}

func TestInsertMergesOverlapping(t *testing.T) {
	s := ints([2]int{5, 10}, [2]int{20, 30})
	s.Insert(New(8, 22))
	want := ints([2]int{5, 30})
	if !s.Equal(want) {
		t.Errorf("got %v, want %v", s.Iter(), want.Iter())
	}
}

func TestInsertMergesTouching(t *testing.T) {
	s := ints([2]int{5, 10})
	s.Insert(New(10, 20))
	want := ints([2]int{5, 20})
	if !s.Equal(want) {
		t.Errorf("got %v, want %v", s.Iter(), want.Iter())
	}
}

func TestInsertIdempotent(t *testing.T) {
	s := ints([2]int{10, 20})
	s.Insert(New(12, 15))
	want := ints([2]int{10, 20})
	if !s.Equal(want) {
		t.Errorf("inserting a contained interval should be a no-op: got %v", s.Iter())
	}
}

// TestInsertWiderSupersetReplacesNarrowerMember guards against a bug where
// inserting an interval that strictly, non-touchingly contains an existing
// member failed to merge with it, because Interval.Intersects only tests
// endpoints of the argument against the receiver.
func TestInsertWiderSupersetReplacesNarrowerMember(t *testing.T) {
	s := ints([2]int{10, 20})
	s.Insert(New(5, 25))
	want := ints([2]int{5, 25})
	if !s.Equal(want) {
		t.Errorf("got %v, want %v", s.Iter(), want.Iter())
	}
}

func TestIntersectingFindsStrictSuperset(t *testing.T) {
	s := ints([2]int{10, 20})
	got := s.Intersecting(New(5, 25))
	if got.Len() != 1 {
		t.Fatalf("Intersecting([5,25]) on set containing [10,20] found %d members, want 1", got.Len())
	}
}

func TestInsertDisjointKeepsBothMembers(t *testing.T) {
	s := ints([2]int{8, 9})
	s.Insert(New(12, 15))
	if s.Len() != 2 {
		t.Fatalf("expected 2 disjoint members, got %d", s.Len())
	}
}

func TestSetInvariantNonOverlappingNonTouching(t *testing.T) {
	s := ints([2]int{1, 5}, [2]int{10, 20}, [2]int{30, 40}, [2]int{6, 9})
	members := s.Iter()
	for i := 1; i < len(members); i++ {
		if members[i-1].Hi >= members[i].Lo {
			t.Errorf("members %v and %v violate the strictly-increasing invariant", members[i-1], members[i])
		}
	}
}
