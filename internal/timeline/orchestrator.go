package timeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/illicitonion/timetravel/internal/interval"
)

// Credentials carries a per-principal bearer-style token plus a stable
// principal name, used only to decide whether the search fallback is
// allowed for this caller.
type Credentials struct {
	Token         string
	PrincipalName string
}

// UpstreamClient is the external collaborator the orchestrator fetches
// missing ranges through. Both methods are inclusive on their bounds.
// Implementations live outside the cache core (internal/upstream).
type UpstreamClient interface {
	// UserTimeline returns the items in [since, max], up to whatever page
	// limit the upstream enforces, in any order.
	UserTimeline(ctx context.Context, creds Credentials, user string, since, max Snowflake) ([]Item, error)
	// Search returns every item in [from, to] via the secondary,
	// slower, but exhaustive search endpoint.
	Search(ctx context.Context, creds Credentials, user string, from, to Snowflake) ([]Item, error)
}

// Completeness decides whether a primary-timeline response should be
// treated as "that's everything in this range" or "we likely hit the
// upstream's page limit and can't tell if there's more". The heuristic is
// pluggable so an upstream that signals completeness directly (a next
// cursor, a page-size contract) can replace the default guess.
type Completeness interface {
	IsComplete(n int, i interval.Interval[Snowflake]) bool
}

// FixedPageCompleteness is the default heuristic: any non-empty primary
// response is treated as complete, and an empty one is treated as
// indeterminate (the orchestrator then either falls back to search or
// fails with IndeterminateEmpty).
type FixedPageCompleteness struct{}

func (FixedPageCompleteness) IsComplete(n int, _ interval.Interval[Snowflake]) bool {
	return n > 0
}

// IndeterminateEmpty is returned when the primary endpoint returned no
// items, the caller is not search-enabled, and so the orchestrator cannot
// tell "no items in range" from "hit the upstream's page limit". No state
// is modified when this is returned.
type IndeterminateEmpty struct {
	User     string
	Interval interval.Interval[Snowflake]
}

func (e *IndeterminateEmpty) Error() string {
	return fmt.Sprintf("timeline: indeterminate empty result for user %q over %v", e.User, e.Interval)
}

// UpstreamError wraps a transport, decoding, or auth failure talking to
// the upstream API. It is surfaced unchanged to the orchestrator's caller.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("timeline: upstream error during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SearchEnabled reports whether principal is permitted to use the
// secondary search endpoint as a primary-empty fallback.
type SearchEnabled interface {
	Allowed(principalName string) bool
}

// SearchEnabledSet is a SearchEnabled backed by a plain set of principal
// names.
type SearchEnabledSet map[string]struct{}

func (s SearchEnabledSet) Allowed(principalName string) bool {
	_, ok := s[principalName]
	return ok
}

// NewSearchEnabledSet builds a SearchEnabledSet from a list of names.
func NewSearchEnabledSet(names []string) SearchEnabledSet {
	s := make(SearchEnabledSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// MutableSearchEnabled is a SearchEnabled whose principal list can be
// swapped at runtime. The server uses it to apply configuration reloads
// without rebuilding the orchestrator: the reload goroutine calls Update
// while request goroutines call Allowed.
type MutableSearchEnabled struct {
	mu  sync.RWMutex
	set SearchEnabledSet
}

// NewMutableSearchEnabled builds a MutableSearchEnabled from an initial
// list of names.
func NewMutableSearchEnabled(names []string) *MutableSearchEnabled {
	return &MutableSearchEnabled{set: NewSearchEnabledSet(names)}
}

func (m *MutableSearchEnabled) Allowed(principalName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.Allowed(principalName)
}

// Update replaces the principal list wholesale.
func (m *MutableSearchEnabled) Update(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = NewSearchEnabledSet(names)
}

// Orchestrator answers range lookups: it asks the cache for known items,
// fetches exactly the missing sub-ranges from upstream on a miss, deposits
// the results, and re-queries. It performs no caching of its own beyond
// what Cache records, and retries nothing internally; upstream errors
// propagate to the caller.
type Orchestrator struct {
	Cache         *Cache
	Upstream      UpstreamClient
	Completeness  Completeness
	SearchEnabled SearchEnabled
}

// NewOrchestrator builds an Orchestrator with the default
// FixedPageCompleteness heuristic.
func NewOrchestrator(cache *Cache, upstream UpstreamClient, searchEnabled SearchEnabled) *Orchestrator {
	return &Orchestrator{
		Cache:         cache,
		Upstream:      upstream,
		Completeness:  FixedPageCompleteness{},
		SearchEnabled: searchEnabled,
	}
}

// Lookup checks the cache, fetches whatever's missing, deposits it, then
// re-queries (which must now succeed). ctx is propagated into every
// upstream call so a cancelled request aborts cleanly without depositing
// anything partial.
func (o *Orchestrator) Lookup(ctx context.Context, creds Credentials, user string, i interval.Interval[Snowflake]) ([]Item, error) {
	items, missing, ok := o.Cache.Known(user, i)
	if ok {
		return items, nil
	}

	// Fetch every missing sub-range before depositing any of them, so a
	// fetch error or cancellation leaves the cache untouched.
	ranges := missing.Iter()
	fetched := make([][]Item, len(ranges))
	for idx, m := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("timeline: lookup cancelled: %w", err)
		}

		items, err := o.fetchOne(ctx, creds, user, m)
		if err != nil {
			return nil, err
		}
		fetched[idx] = items
	}

	for idx, m := range ranges {
		if err := o.Cache.Deposit(user, m, fetched[idx]); err != nil {
			return nil, fmt.Errorf("timeline: deposit after fetch: %w", err)
		}
	}

	final, _, ok := o.Cache.Known(user, i)
	if !ok {
		// Every missing sub-range was just deposited; the range must now
		// be fully known. Failing to observe that is a programmer error,
		// not a data-dependent condition.
		panic(fmt.Sprintf("timeline: range %v still not known for %q after depositing all missing sub-ranges", i, user))
	}
	return final, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, creds Credentials, user string, m interval.Interval[Snowflake]) ([]Item, error) {
	primary, err := o.Upstream.UserTimeline(ctx, creds, user, m.Lo, m.Hi)
	if err != nil {
		return nil, &UpstreamError{Op: "user_timeline", Err: err}
	}

	if o.Completeness.IsComplete(len(primary), m) {
		return sortedByTime(primary), nil
	}

	if o.SearchEnabled == nil || !o.SearchEnabled.Allowed(creds.PrincipalName) {
		return nil, &IndeterminateEmpty{User: user, Interval: m}
	}

	fallback, err := o.Upstream.Search(ctx, creds, user, m.Lo, m.Hi)
	if err != nil {
		return nil, &UpstreamError{Op: "search", Err: err}
	}
	return sortedByTime(fallback), nil
}

func sortedByTime(items []Item) []Item {
	out := append([]Item(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
