package reconciler

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func set(ids ...string) mapset.Set[string] {
	return mapset.NewSet(ids...)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		remote     mapset.Set[string]
		local      mapset.Set[string]
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:       "first run tracks everything",
			remote:     set("q2", "q1"),
			local:      set(),
			wantAdd:    []string{"q1", "q2"},
			wantRemove: []string{},
		},
		{
			name:       "new and stale",
			remote:     set("q2", "q3"),
			local:      set("q1", "q2"),
			wantAdd:    []string{"q3"},
			wantRemove: []string{"q1"},
		},
		{
			name:       "unchanged",
			remote:     set("q1", "q2"),
			local:      set("q1", "q2"),
			wantAdd:    []string{},
			wantRemove: []string{},
		},
		{
			name:       "empty remote removes everything",
			remote:     set(),
			local:      set("q1", "q2"),
			wantAdd:    []string{},
			wantRemove: []string{"q1", "q2"},
		},
		{
			name:       "both empty",
			remote:     set(),
			local:      set(),
			wantAdd:    []string{},
			wantRemove: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(tt.remote, tt.local)
			assert.ElementsMatch(t, tt.wantAdd, plan.ToAdd)
			assert.Equal(t, len(tt.wantAdd), len(plan.ToAdd))
			assert.ElementsMatch(t, tt.wantRemove, plan.ToRemove)
			assert.Equal(t, plan.ToAdd, plan.ToNotify)
			assert.Empty(t, plan.Deferred)
		})
	}
}

func TestReconcile_Reappearance(t *testing.T) {
	// q1 dropped out of the remote set and was removed locally
	first := Reconcile(set("q2"), set("q1", "q2"))
	assert.Equal(t, []string{"q1"}, first.ToRemove)

	// it comes back and is new again
	second := Reconcile(set("q1", "q2"), set("q2"))
	assert.Equal(t, []string{"q1"}, second.ToAdd)
	assert.Equal(t, []string{"q1"}, second.ToNotify)
}

func TestReconcile_OutputSorted(t *testing.T) {
	plan := Reconcile(set("c", "a", "b"), set("z", "x", "y"))
	assert.Equal(t, []string{"a", "b", "c"}, plan.ToAdd)
	assert.Equal(t, []string{"x", "y", "z"}, plan.ToRemove)
}

func TestPlanLimit(t *testing.T) {
	plan := Reconcile(set("a", "b", "c", "d"), set("old"))

	limited := plan.Limit(2, []string{"d", "b", "a", "c"})
	assert.Equal(t, []string{"b", "d"}, limited.ToAdd)
	assert.Equal(t, []string{"b", "d"}, limited.ToNotify)
	assert.Equal(t, []string{"a", "c"}, limited.Deferred)
	assert.Equal(t, []string{"old"}, limited.ToRemove)

	// Ids absent from the priority list rank last
	limited = plan.Limit(3, []string{"c"})
	assert.Equal(t, []string{"a", "b", "c"}, limited.ToAdd)
	assert.Equal(t, []string{"d"}, limited.Deferred)

	assert.Equal(t, plan, plan.Limit(0, nil))
	assert.Equal(t, plan, plan.Limit(4, nil))
	assert.Equal(t, plan, plan.Limit(10, nil))
}

func TestPlanEmpty(t *testing.T) {
	assert.True(t, Reconcile(set("a"), set("a")).Empty())
	assert.False(t, Reconcile(set("a"), set()).Empty())
	assert.False(t, Reconcile(set(), set("a")).Empty())
}

// ==============================================================================
// Property Tests
// ==============================================================================

func drawSet(t *rapid.T, label string) mapset.Set[string] {
	ids := rapid.SliceOfN(rapid.StringMatching(`q[0-9]{1,2}`), 0, 20).Draw(t, label)
	return mapset.NewSet(ids...)
}

func TestReconcile_SetAlgebra(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		remote := drawSet(t, "remote")
		local := drawSet(t, "local")

		plan := Reconcile(remote, local)
		toAdd := mapset.NewSet(plan.ToAdd...)
		toRemove := mapset.NewSet(plan.ToRemove...)

		if !toAdd.Equal(remote.Difference(local)) {
			t.Fatalf("to_add %v != remote - local", plan.ToAdd)
		}
		if !toRemove.Equal(local.Difference(remote)) {
			t.Fatalf("to_remove %v != local - remote", plan.ToRemove)
		}
		if toAdd.Intersect(toRemove).Cardinality() != 0 {
			t.Fatalf("to_add and to_remove overlap")
		}
		if !mapset.NewSet(plan.ToNotify...).Equal(toAdd) {
			t.Fatalf("to_notify %v != to_add %v", plan.ToNotify, plan.ToAdd)
		}

		// Applying the plan yields exactly the remote set
		after := local.Union(toAdd).Difference(toRemove)
		if !after.Equal(remote) {
			t.Fatalf("applied plan gives %v, want %v", after, remote)
		}
	})
}

func TestReconcile_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		remote := drawSet(t, "remote")
		local := drawSet(t, "local")

		first := Reconcile(remote, local)
		after := local.Union(mapset.NewSet(first.ToAdd...)).Difference(mapset.NewSet(first.ToRemove...))

		second := Reconcile(remote, after)
		if !second.Empty() || len(second.ToNotify) != 0 {
			t.Fatalf("second reconcile not empty: %+v", second)
		}
	})
}

func TestPlanLimit_NothingLost(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		remote := drawSet(t, "remote")
		local := drawSet(t, "local")
		n := rapid.IntRange(0, 25).Draw(t, "n")

		plan := Reconcile(remote, local)
		limited := plan.Limit(n, plan.ToAdd)

		if n > 0 && len(limited.ToAdd) > n {
			t.Fatalf("kept %d ids, limit %d", len(limited.ToAdd), n)
		}
		union := mapset.NewSet(limited.ToAdd...).Union(mapset.NewSet(limited.Deferred...))
		if !union.Equal(mapset.NewSet(plan.ToAdd...)) {
			t.Fatalf("limit lost ids: kept %v deferred %v, want %v", limited.ToAdd, limited.Deferred, plan.ToAdd)
		}
	})
}
