package db

import "time"

// SeenQuest is one tracked quest identifier
type SeenQuest struct {
	QuestID   string
	FirstSeen time.Time
}

// PassRun is the persisted summary of one reconciliation pass
type PassRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	FinalState  string  // 'done' or 'errored'
	FailureKind *string // 'fetch' or 'store' when errored
	Error       *string
	Fetched     int
	Added       int
	Removed     int
	Notified    int
	Failed      int
	Deferred    int
}
