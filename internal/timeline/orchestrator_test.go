package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/illicitonion/timetravel/internal/interval"
)

type fakeUpstream struct {
	timelineResponses map[string][]Item // keyed by fmt.Sprintf("%d-%d", since, max)
	timelineErr       error
	searchResponses   map[string][]Item
	searchErr         error
	timelineCalls     int
	searchCalls       int
}

func key(since, max Snowflake) string { return fmt.Sprintf("%d-%d", since, max) }

func (f *fakeUpstream) UserTimeline(_ context.Context, _ Credentials, _ string, since, max Snowflake) ([]Item, error) {
	f.timelineCalls++
	if f.timelineErr != nil {
		return nil, f.timelineErr
	}
	return f.timelineResponses[key(since, max)], nil
}

func (f *fakeUpstream) Search(_ context.Context, _ Credentials, _ string, from, to Snowflake) ([]Item, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResponses[key(from, to)], nil
}

func items(ids ...Snowflake) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id}
	}
	return out
}

func assertIDs(t *testing.T, got []Item, want ...Snowflake) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d items %v, want %v", len(got), got, want)
	}
	for i, w := range want {
		if got[i].ID != w {
			t.Fatalf("got %v, want ids %v", got, want)
		}
	}
}

func TestOrchestratorMissThenHit(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(10, 20): items(10, 11, 15),
		},
	}
	o := NewOrchestrator(NewCache(), up, nil)

	got, err := o.Lookup(context.Background(), Credentials{PrincipalName: "u"}, "u", interval.New[Snowflake](10, 20))
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	assertIDs(t, got, 10, 11, 15)

	up.timelineErr = errors.New("upstream is down")
	got2, err := o.Lookup(context.Background(), Credentials{PrincipalName: "u"}, "u", interval.New[Snowflake](10, 20))
	if err != nil {
		t.Fatalf("second lookup should be served from cache without calling upstream: %v", err)
	}
	assertIDs(t, got2, 10, 11, 15)
	if up.timelineCalls != 1 {
		t.Errorf("expected exactly 1 upstream call, got %d", up.timelineCalls)
	}
}

func TestOrchestratorPartialMiss(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(15, 20): items(15, 18),
		},
	}
	cache := NewCache()
	if err := cache.Deposit("u", interval.New[Snowflake](10, 15), items(10, 11, 15)); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	o := NewOrchestrator(cache, up, nil)

	got, err := o.Lookup(context.Background(), Credentials{PrincipalName: "u"}, "u", interval.New[Snowflake](10, 20))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	assertIDs(t, got, 10, 11, 15, 18)
	if up.timelineCalls != 1 {
		t.Errorf("expected exactly 1 upstream call for the missing sub-range, got %d", up.timelineCalls)
	}
}

func TestOrchestratorEmptyWithoutSearch(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(10, 20): {},
		},
	}
	cache := NewCache()
	o := NewOrchestrator(cache, up, NewSearchEnabledSet(nil))

	_, err := o.Lookup(context.Background(), Credentials{PrincipalName: "not-enabled"}, "u", interval.New[Snowflake](10, 20))
	var indeterminate *IndeterminateEmpty
	if !errors.As(err, &indeterminate) {
		t.Fatalf("expected IndeterminateEmpty, got %v", err)
	}
	if up.searchCalls != 0 {
		t.Errorf("expected no search fallback for a non-enabled principal, got %d calls", up.searchCalls)
	}

	if _, _, ok := cache.Known("u", interval.New[Snowflake](10, 20)); ok {
		t.Fatal("expected nothing to be deposited for an indeterminate-empty range")
	}
}

func TestOrchestratorSearchFallbackWhenEnabled(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(10, 20): {},
		},
		searchResponses: map[string][]Item{
			key(10, 20): items(12, 14),
		},
	}
	o := NewOrchestrator(NewCache(), up, NewSearchEnabledSet([]string{"enabled"}))

	got, err := o.Lookup(context.Background(), Credentials{PrincipalName: "enabled"}, "u", interval.New[Snowflake](10, 20))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	assertIDs(t, got, 12, 14)
	if up.searchCalls != 1 {
		t.Errorf("expected exactly 1 search call, got %d", up.searchCalls)
	}
}

func TestMutableSearchEnabledUpdateTakesEffect(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(10, 20): {},
		},
		searchResponses: map[string][]Item{
			key(10, 20): items(12),
		},
	}
	enabled := NewMutableSearchEnabled(nil)
	o := NewOrchestrator(NewCache(), up, enabled)

	creds := Credentials{PrincipalName: "late-addition"}
	if _, err := o.Lookup(context.Background(), creds, "u", interval.New[Snowflake](10, 20)); err == nil {
		t.Fatal("expected lookup to fail before the principal is enabled")
	}

	enabled.Update([]string{"late-addition"})

	got, err := o.Lookup(context.Background(), creds, "u", interval.New[Snowflake](10, 20))
	if err != nil {
		t.Fatalf("lookup after enabling: %v", err)
	}
	assertIDs(t, got, 12)
}

func TestOrchestratorUpstreamErrorPropagates(t *testing.T) {
	up := &fakeUpstream{timelineErr: errors.New("boom")}
	o := NewOrchestrator(NewCache(), up, nil)

	_, err := o.Lookup(context.Background(), Credentials{}, "u", interval.New[Snowflake](10, 20))
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestOrchestratorCancelledContextDepositsNothing(t *testing.T) {
	up := &fakeUpstream{
		timelineResponses: map[string][]Item{
			key(10, 20): items(10),
		},
	}
	cache := NewCache()
	o := NewOrchestrator(cache, up, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Lookup(ctx, Credentials{}, "u", interval.New[Snowflake](10, 20))
	if err == nil {
		t.Fatal("expected lookup to fail on a cancelled context")
	}
	if _, _, ok := cache.Known("u", interval.New[Snowflake](10, 20)); ok {
		t.Fatal("expected nothing to be deposited for a cancelled lookup")
	}
}
