package timeline

import (
	"sync"

	"github.com/illicitonion/timetravel/internal/interval"
	"github.com/illicitonion/timetravel/internal/intervalstore"
)

// Cache is a per-user registry of IntervalStores. The outer map only
// grows: users are auto-vivified on first deposit and never evicted.
//
// Locking discipline: usersMu guards the outer map;
// readers take it under RLock to look up a user's store, writers take it
// under Lock only long enough to auto-vivify a missing user. Each user's
// store has its own RWMutex. Lock order is always outer → per-user; no
// goroutine ever holds two per-user locks at once.
type Cache struct {
	usersMu sync.RWMutex
	users   map[string]*userStore
}

type userStore struct {
	mu    sync.RWMutex
	store *intervalstore.Store[Snowflake, Item]
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{users: make(map[string]*userStore)}
}

// Known looks up the items in i for user. If i is fully covered by what's
// already known, it returns (items, nil, true). Otherwise it returns
// (nil, missing, false) with the sub-ranges of i that still need to be
// fetched from upstream. An unknown user is treated as "the whole range
// is missing".
func (c *Cache) Known(user string, i interval.Interval[Snowflake]) (items []Item, missing *interval.Set[Snowflake], ok bool) {
	us := c.lookup(user)
	if us == nil {
		return nil, interval.NewSet(i), false
	}

	us.mu.RLock()
	defer us.mu.RUnlock()

	if got, found := us.store.Get(i); found {
		return got, nil, true
	}
	return nil, us.store.Missing(i), false
}

// Deposit inserts items covering i into user's store, auto-vivifying the
// user if this is its first deposit. See intervalstore.Store.Insert for
// the conflict-detection semantics.
func (c *Cache) Deposit(user string, i interval.Interval[Snowflake], items []Item) error {
	us := c.lookupOrCreate(user)

	us.mu.Lock()
	defer us.mu.Unlock()

	return us.store.Insert(i, items)
}

// Users returns every user name currently registered in the cache. It is
// used by internal/cachecheck to enumerate what to audit; ordinary lookup
// traffic never needs it.
func (c *Cache) Users() []string {
	c.usersMu.RLock()
	defer c.usersMu.RUnlock()

	out := make([]string, 0, len(c.users))
	for u := range c.users {
		out = append(out, u)
	}
	return out
}

// Snapshot returns a read-only copy of user's known-coverage set and
// stored values, for diagnostics. It takes the same per-user read lock as
// Known.
func (c *Cache) Snapshot(user string) (known *interval.Set[Snowflake], values []Item, ok bool) {
	us := c.lookup(user)
	if us == nil {
		return nil, nil, false
	}

	us.mu.RLock()
	defer us.mu.RUnlock()

	return us.store.KnownSet(), us.store.All(), true
}

func (c *Cache) lookup(user string) *userStore {
	c.usersMu.RLock()
	defer c.usersMu.RUnlock()
	return c.users[user]
}

func (c *Cache) lookupOrCreate(user string) *userStore {
	if us := c.lookup(user); us != nil {
		return us
	}

	c.usersMu.Lock()
	defer c.usersMu.Unlock()

	if us, ok := c.users[user]; ok {
		return us
	}
	us := &userStore{store: intervalstore.New[Snowflake, Item]()}
	c.users[user] = us
	return us
}
