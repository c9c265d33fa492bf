package orchestrator

// IdleState - pass created, nothing done yet
type IdleState struct{}

func (s *IdleState) Name() string { return "idle" }
func (s *IdleState) ToFetching() *FetchingState {
	return &FetchingState{}
}

// FetchingState - reading the remote quest list
type FetchingState struct{}

func (s *FetchingState) Name() string { return "fetching" }
func (s *FetchingState) ToReconciling() *ReconcilingState {
	return &ReconcilingState{}
}
func (s *FetchingState) ToErrored() *ErroredState {
	return &ErroredState{}
}

// ReconcilingState - snapshot taken, computing the plan
type ReconcilingState struct{}

func (s *ReconcilingState) Name() string { return "reconciling" }
func (s *ReconcilingState) ToPersisting() *PersistingState {
	return &PersistingState{}
}
func (s *ReconcilingState) ToErrored() *ErroredState {
	return &ErroredState{}
}

// PersistingState - applying the plan to the store
type PersistingState struct{}

func (s *PersistingState) Name() string { return "persisting" }
func (s *PersistingState) ToNotifying() *NotifyingState {
	return &NotifyingState{}
}

// ToDone skips notification, used by sync passes
func (s *PersistingState) ToDone() *DoneState {
	return &DoneState{}
}
func (s *PersistingState) ToErrored() *ErroredState {
	return &ErroredState{}
}

// NotifyingState - announcing new quests. Delivery failures never error the pass.
type NotifyingState struct{}

func (s *NotifyingState) Name() string { return "notifying" }
func (s *NotifyingState) ToDone() *DoneState {
	return &DoneState{}
}

// Terminal States

// DoneState - pass completed
type DoneState struct{}

func (s *DoneState) Name() string { return "done" }

// ErroredState - pass aborted
type ErroredState struct{}

func (s *ErroredState) Name() string { return "errored" }
