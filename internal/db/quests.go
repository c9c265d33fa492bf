package db

import (
	"context"
	"time"
)

// =============================================================================
// Seen Quest Operations
// =============================================================================

const insertSeenQuestQuery = `
	INSERT OR IGNORE INTO seen_quests (quest_id, first_seen)
	VALUES (?, ?)
`

// InsertSeenQuest tracks a quest id. An already tracked id is left untouched,
// first_seen included.
func (db *DB) InsertSeenQuest(ctx context.Context, questID string, firstSeen time.Time) error {
	_, err := db.ExecContext(ctx, insertSeenQuestQuery, questID, firstSeen.UTC())
	return err
}

// InsertSeenQuest tracks a quest id within a transaction
func (tx *Tx) InsertSeenQuest(ctx context.Context, questID string, firstSeen time.Time) error {
	_, err := tx.ExecContext(ctx, insertSeenQuestQuery, questID, firstSeen.UTC())
	return err
}

// DeleteSeenQuest stops tracking a quest id. Deleting an untracked id is a no-op.
func (db *DB) DeleteSeenQuest(ctx context.Context, questID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM seen_quests WHERE quest_id = ?`, questID)
	return err
}

// DeleteSeenQuest stops tracking a quest id within a transaction
func (tx *Tx) DeleteSeenQuest(ctx context.Context, questID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM seen_quests WHERE quest_id = ?`, questID)
	return err
}

// ListSeenQuestIDs returns every tracked quest id
func (db *DB) ListSeenQuestIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT quest_id FROM seen_quests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// ListSeenQuests returns every tracked quest, most recently seen first
func (db *DB) ListSeenQuests(ctx context.Context) ([]SeenQuest, error) {
	query := `
		SELECT quest_id, first_seen
		FROM seen_quests
		ORDER BY first_seen DESC, quest_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quests := []SeenQuest{}
	for rows.Next() {
		var sq SeenQuest
		if err := rows.Scan(&sq.QuestID, &sq.FirstSeen); err != nil {
			return nil, err
		}
		quests = append(quests, sq)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return quests, nil
}

// CountSeenQuests returns the number of tracked quests
func (db *DB) CountSeenQuests(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_quests`).Scan(&n)
	return n, err
}

// ClearSeenQuests removes every tracked quest and returns how many were removed
func (db *DB) ClearSeenQuests(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM seen_quests`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PurgeSeenQuestsBefore removes quests first seen strictly before cutoff
func (db *DB) PurgeSeenQuestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM seen_quests WHERE first_seen < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
