package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/notifier"
	"github.com/livinlefevreloca/questwatch/internal/quest"
)

// Mode selects what a pass does with newly observed quests
type Mode int

const (
	// ModeNotify tracks new quests and announces them
	ModeNotify Mode = iota
	// ModeSync tracks new quests silently
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeNotify:
		return "run"
	case ModeSync:
		return "sync"
	default:
		return "unknown"
	}
}

// FailureKind classifies why a pass ended errored
type FailureKind string

const (
	FailureFetch FailureKind = "fetch"
	FailureStore FailureKind = "store"
)

// PassError is returned by Run when the pass ends in the errored state
type PassError struct {
	Kind FailureKind
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// Fetcher returns the quests currently offered by the remote
type Fetcher interface {
	FetchQuests(ctx context.Context) ([]quest.Quest, error)
}

// Notifier announces quests from the fetched batch
type Notifier interface {
	Notify(ctx context.Context, ids []string, batch quest.Batch) notifier.Result
}

// Config holds the pass settings
type Config struct {
	FetchTimeout     time.Duration
	MaxNotifyPerPass int
	Mode             Mode
}

// Summary reports what one pass did. Id slices are sorted except Notified
// and Failed, which keep delivery order.
type Summary struct {
	PassID     string
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time
	FinalState string
	Fetched    int
	Tracked    int
	Added      []string
	Removed    []string
	Deferred   []string
	Notified   []string
	Failed     []string
}

// Duration of the pass
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
