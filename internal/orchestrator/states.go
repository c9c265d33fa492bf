package orchestrator

import "time"

// State is the interface that all pass states must implement
type State interface {
	Name() string
}

// StateRecorder tracks state transitions for testing
type StateRecorder struct {
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	return r.path
}

// Phase timing boundaries (stored separately from states)
type PhaseTiming struct {
	StartedAt          time.Time
	FetchStartedAt     time.Time
	ReconcileStartedAt time.Time
	PersistStartedAt   time.Time
	NotifyStartedAt    time.Time
	FinishedAt         time.Time
}
