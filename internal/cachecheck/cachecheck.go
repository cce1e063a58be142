// Package cachecheck audits a running timeline.Cache for its structural
// invariants: every user's known-coverage set must be canonical (sorted,
// non-overlapping, non-touching), and every stored value must fall inside
// some known interval, strictly ordered with no duplicate times. The cache
// is in-memory only, so every check here is a property of the data
// structures themselves rather than a comparison against external state.
package cachecheck

import (
	"fmt"
	"log/slog"

	"github.com/illicitonion/timetravel/internal/timeline"
)

// Options controls a Run.
type Options struct {
	Verbose bool         // detailed per-user logging
	Logger  *slog.Logger // required for all output
}

// Result contains the findings from a Run.
type Result struct {
	Violations      int            // total violations found
	ViolationsFound map[string]int // violations per check name
	UsersChecked    int
}

// Run audits every user currently registered in cache. It never mutates
// the cache: a violation here means a bug in intervalstore or timeline,
// not a recoverable runtime condition, so Run only reports. Rewriting a
// corrupted cache into a plausible-looking one would mask the bug that
// produced it.
func Run(cache *timeline.Cache, opts Options) (*Result, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("cachecheck: logger is required")
	}

	users := cache.Users()
	result := &Result{
		ViolationsFound: make(map[string]int),
		UsersChecked:    len(users),
	}

	for _, user := range users {
		known, values, ok := cache.Snapshot(user)
		if !ok {
			// The user was evicted between the Users() and Snapshot()
			// calls. Impossible today (the cache never evicts), but
			// harmless if that ever changes.
			continue
		}

		members := known.Iter()

		if opts.Verbose {
			opts.Logger.Debug("checking user", "user", user, "known_intervals", len(members), "values", len(values))
		}

		result.ViolationsFound["canonical"] += checkCanonical(user, members, opts)
		result.ViolationsFound["coverage"] += checkCoverage(user, members, values, opts)
	}

	for _, n := range result.ViolationsFound {
		result.Violations += n
	}

	if result.Violations > 0 {
		opts.Logger.Warn("cachecheck found violations", "violations", result.Violations, "users_checked", result.UsersChecked)
	} else if opts.Verbose {
		opts.Logger.Debug("cachecheck found no violations", "users_checked", result.UsersChecked)
	}

	return result, nil
}
