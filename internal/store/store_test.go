package store

import (
	"context"
	"testing"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func newTestStore(t *testing.T) (*SQLStore, *db.DB) {
	t.Helper()

	database, err := db.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.Config{}))
	t.Cleanup(func() { database.Close() })

	return NewSQLStore(database), database
}

func TestSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Cardinality())

	require.NoError(t, s.InsertAll(ctx, []string{"q1", "q2"}, time.Now()))

	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Contains("q1", "q2"))
	assert.Equal(t, 2, snap.Cardinality())
}

func TestInsert_NeverUpdatesFirstSeen(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, "q1", first))
	require.NoError(t, s.Insert(ctx, "q1", first.Add(24*time.Hour)))
	require.NoError(t, s.InsertAll(ctx, []string{"q1"}, first.Add(48*time.Hour)))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].FirstSeen.Equal(first))
}

func TestRemove_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAll(ctx, []string{"q1", "q2", "q3"}, time.Now()))
	require.NoError(t, s.Remove(ctx, "q1"))
	require.NoError(t, s.Remove(ctx, "q1"))
	require.NoError(t, s.RemoveAll(ctx, []string{"q2", "missing"}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"q3"}, snap.ToSlice())
}

func TestBatchOpsWithNoIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.InsertAll(ctx, nil, time.Now()))
	assert.NoError(t, s.RemoveAll(ctx, []string{}))
}

func TestClearAndPurge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, "old", now.AddDate(0, 0, -40)))
	require.NoError(t, s.Insert(ctx, "new", now))

	n, err := s.PurgeBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	n, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnavailableMedium(t *testing.T) {
	s, database := newTestStore(t)
	ctx := context.Background()
	database.Close()

	_, err := s.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, s.Insert(ctx, "q1", time.Now()), ErrStoreUnavailable)
	assert.ErrorIs(t, s.InsertAll(ctx, []string{"q1"}, time.Now()), ErrStoreUnavailable)
	assert.ErrorIs(t, s.RemoveAll(ctx, []string{"q1"}), ErrStoreUnavailable)
	_, err = s.Clear(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = s.Count(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRecordPass(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2"} {
		run := &db.PassRun{
			ID:         id,
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			FinishedAt: start.Add(time.Duration(i)*time.Minute + time.Second),
			FinalState: "done",
			Added:      i,
		}
		require.NoError(t, s.RecordPass(ctx, run))
	}

	runs, err := s.RecentPasses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "p2", runs[0].ID)
	assert.Equal(t, 1, runs[0].Added)

	// A repeated id is not a medium failure
	err = s.RecordPass(ctx, &db.PassRun{ID: "p1", StartedAt: start, FinishedAt: start, FinalState: "done"})
	assert.ErrorIs(t, err, ErrPassRecorded)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}
