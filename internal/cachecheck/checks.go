package cachecheck

import (
	"github.com/illicitonion/timetravel/internal/interval"
	"github.com/illicitonion/timetravel/internal/timeline"
)

// checkCanonical verifies that a user's known-coverage members are sorted,
// pairwise non-overlapping, and non-touching. interval.Set.Insert makes
// this unconditionally true; a violation here means the set was built some
// way other than through Insert, not a data-dependent condition.
func checkCanonical(user string, members []interval.Interval[timeline.Snowflake], opts Options) int {
	violations := 0

	for i := 1; i < len(members); i++ {
		if members[i-1].Hi >= members[i].Lo {
			opts.Logger.Warn("non-canonical interval set",
				"user", user,
				"first", members[i-1],
				"second", members[i],
			)
			violations++
		}
	}

	return violations
}

// checkCoverage verifies that every stored value's time falls within some
// known interval, and that values are strictly ascending with no duplicate
// times.
func checkCoverage(user string, members []interval.Interval[timeline.Snowflake], values []timeline.Item, opts Options) int {
	violations := 0

	for i, v := range values {
		if i > 0 && !(values[i-1].Time() < v.Time()) {
			opts.Logger.Warn("values not strictly ascending/deduped",
				"user", user,
				"prev", values[i-1].ID,
				"curr", v.ID,
			)
			violations++
		}

		if !coveredByAny(members, v.Time()) {
			opts.Logger.Warn("value outside any known interval",
				"user", user,
				"id", v.ID,
			)
			violations++
		}
	}

	return violations
}

func coveredByAny(members []interval.Interval[timeline.Snowflake], t timeline.Snowflake) bool {
	for _, m := range members {
		if m.Contains(t) {
			return true
		}
	}
	return false
}
