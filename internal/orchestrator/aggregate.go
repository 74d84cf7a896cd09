package orchestrator

import (
	"cmp"
	"slices"
)

// Aggregate partitions results into successes and failures. Successes are
// ordered by primary digest, then agent name, so the merge order depends
// only on output content and never on completion order. Failures keep
// their input order.
func Aggregate(results []Result) (ordered, failed []Result) {
	ordered = make([]Result, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			ordered = append(ordered, r)
		} else {
			failed = append(failed, r)
		}
	}
	slices.SortFunc(ordered, func(a, b Result) int {
		if c := cmp.Compare(a.DigestPrimary, b.DigestPrimary); c != 0 {
			return c
		}
		return cmp.Compare(a.Agent, b.Agent)
	})
	return ordered, failed
}
