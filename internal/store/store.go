// Package store is the durable record of quest ids already seen.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/livinlefevreloca/questwatch/internal/db"
)

var (
	// ErrStoreUnavailable wraps every failure of the underlying medium
	ErrStoreUnavailable = errors.New("store: unavailable")
	// ErrPassRecorded is returned when a pass id was already recorded
	ErrPassRecorded = errors.New("store: pass already recorded")
)

// Entry is one tracked quest
type Entry struct {
	QuestID   string
	FirstSeen time.Time
}

// Store holds the set of tracked quest ids. Every write is durable before
// it returns.
type Store interface {
	// Snapshot reads the full tracked id set
	Snapshot(ctx context.Context) (mapset.Set[string], error)
	// Insert tracks id. Tracking an already tracked id changes nothing.
	Insert(ctx context.Context, id string, firstSeen time.Time) error
	// Remove stops tracking id. Removing an untracked id changes nothing.
	Remove(ctx context.Context, id string) error
	// InsertAll tracks every id atomically
	InsertAll(ctx context.Context, ids []string, firstSeen time.Time) error
	// RemoveAll stops tracking every id atomically
	RemoveAll(ctx context.Context, ids []string) error
	// Clear stops tracking everything and returns how many entries were removed
	Clear(ctx context.Context) (int64, error)
	// Entries lists tracked quests, most recently seen first
	Entries(ctx context.Context) ([]Entry, error)
	// PurgeBefore removes entries first seen before cutoff
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the number of tracked quests
	Count(ctx context.Context) (int, error)
}

// PassRecorder persists pass summaries
type PassRecorder interface {
	RecordPass(ctx context.Context, run *db.PassRun) error
	RecentPasses(ctx context.Context, limit int) ([]db.PassRun, error)
}

// SQLStore adapts db.DB to Store and PassRecorder
type SQLStore struct {
	db *db.DB
}

// NewSQLStore creates a store over an open, migrated database
func NewSQLStore(database *db.DB) *SQLStore {
	return &SQLStore{db: database}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func (s *SQLStore) Snapshot(ctx context.Context) (mapset.Set[string], error) {
	ids, err := s.db.ListSeenQuestIDs(ctx)
	if err != nil {
		return nil, unavailable("snapshot", err)
	}
	return mapset.NewSet(ids...), nil
}

func (s *SQLStore) Insert(ctx context.Context, id string, firstSeen time.Time) error {
	if err := s.db.InsertSeenQuest(ctx, id, firstSeen); err != nil {
		return unavailable("insert "+id, err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, id string) error {
	if err := s.db.DeleteSeenQuest(ctx, id); err != nil {
		return unavailable("remove "+id, err)
	}
	return nil
}

func (s *SQLStore) InsertAll(ctx context.Context, ids []string, firstSeen time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithTransaction(ctx, func(tx *db.Tx) error {
		for _, id := range ids {
			if err := tx.InsertSeenQuest(ctx, id, firstSeen); err != nil {
				return fmt.Errorf("insert %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("insert batch", err)
	}
	return nil
}

func (s *SQLStore) RemoveAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithTransaction(ctx, func(tx *db.Tx) error {
		for _, id := range ids {
			if err := tx.DeleteSeenQuest(ctx, id); err != nil {
				return fmt.Errorf("remove %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("remove batch", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) (int64, error) {
	n, err := s.db.ClearSeenQuests(ctx)
	if err != nil {
		return 0, unavailable("clear", err)
	}
	return n, nil
}

func (s *SQLStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.ListSeenQuests(ctx)
	if err != nil {
		return nil, unavailable("list", err)
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{QuestID: r.QuestID, FirstSeen: r.FirstSeen}
	}
	return entries, nil
}

func (s *SQLStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.db.PurgeSeenQuestsBefore(ctx, cutoff)
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return n, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.CountSeenQuests(ctx)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// RecordPass writes the summary of a finished pass
func (s *SQLStore) RecordPass(ctx context.Context, run *db.PassRun) error {
	err := s.db.CreatePassRun(ctx, run)
	switch {
	case err == nil:
		return nil
	case db.IsDuplicate(err):
		return fmt.Errorf("%w: %s", ErrPassRecorded, run.ID)
	default:
		return unavailable("record pass", err)
	}
}

// RecentPasses returns the latest pass summaries, newest first
func (s *SQLStore) RecentPasses(ctx context.Context, limit int) ([]db.PassRun, error) {
	runs, err := s.db.ListPassRuns(ctx, limit)
	if err != nil {
		return nil, unavailable("list passes", err)
	}
	return runs, nil
}
