// Package reconciler decides how the tracked quest set must change to match
// the remote one.
package reconciler

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Plan is the outcome of one reconciliation. Every slice is sorted.
type Plan struct {
	ToAdd    []string
	ToRemove []string
	ToNotify []string

	// Deferred holds new ids held back by Limit. They are neither tracked nor
	// notified so the next pass sees them as new again.
	Deferred []string
}

// Reconcile compares the remote id set against the locally tracked one.
// It has no side effects.
func Reconcile(remote, local mapset.Set[string]) Plan {
	toAdd := sorted(remote.Difference(local))
	toRemove := sorted(local.Difference(remote))

	return Plan{
		ToAdd:    toAdd,
		ToRemove: toRemove,
		ToNotify: slices.Clone(toAdd),
	}
}

// Limit caps the number of new quests handled in this pass. The first n ids of
// ToAdd in priority order are kept; ids of ToAdd missing from priority rank
// after the listed ones. n <= 0 means no limit.
func (p Plan) Limit(n int, priority []string) Plan {
	if n <= 0 || len(p.ToAdd) <= n {
		return p
	}

	pending := mapset.NewThreadUnsafeSet(p.ToAdd...)
	ordered := make([]string, 0, len(p.ToAdd))
	for _, id := range priority {
		if pending.Contains(id) {
			ordered = append(ordered, id)
			pending.Remove(id)
		}
	}
	ordered = append(ordered, sorted(pending)...)

	toAdd := slices.Clone(ordered[:n])
	slices.Sort(toAdd)
	deferred := slices.Clone(ordered[n:])
	slices.Sort(deferred)

	return Plan{
		ToAdd:    toAdd,
		ToRemove: p.ToRemove,
		ToNotify: slices.Clone(toAdd),
		Deferred: deferred,
	}
}

// Empty reports whether the plan changes nothing
func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
