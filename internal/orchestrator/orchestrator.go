package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/alert"
	"github.com/livinlefevreloca/questwatch/internal/db"
	"github.com/livinlefevreloca/questwatch/internal/discord"
	"github.com/livinlefevreloca/questwatch/internal/metrics"
	"github.com/livinlefevreloca/questwatch/internal/notifier"
	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/livinlefevreloca/questwatch/internal/reconciler"
	"github.com/livinlefevreloca/questwatch/internal/store"
)

// FailureInternal marks a pass aborted by a recovered panic
const FailureInternal FailureKind = "internal"

// ErrAlreadyRun is returned when Run is called on a finished orchestrator
var ErrAlreadyRun = errors.New("orchestrator: pass already ran")

const authHint = "❌ Discord API auth error. Tokens may be expired or missing. Please refresh DISCORD_AUTHORIZATION and TOKEN_JWT."

// Dependencies are the collaborators of a pass. Recorder, Notifier and
// Metrics may be nil; a nil Notifier is only valid in ModeSync.
type Dependencies struct {
	Fetcher  Fetcher
	Store    store.Store
	Recorder store.PassRecorder
	Notifier Notifier
	Alerter  alert.Alerter
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Orchestrator represents a single reconciliation pass
type Orchestrator struct {
	// Core identification
	passID string
	config Config

	// State management
	state State

	// Dependencies
	fetcher  Fetcher
	store    store.Store
	passes   store.PassRecorder
	notifier Notifier
	alerter  alert.Alerter
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger

	// Phase timing
	timing PhaseTiming

	// Pass data, valid once the producing state has run
	batch   quest.Batch
	plan    reconciler.Plan
	result  notifier.Result
	tracked int
	failure *PassError

	// persisted holds the new ids committed to the store, kept even when a
	// later step errors the pass
	persisted []string

	// Optional state recorder for testing
	recorder *StateRecorder
}

// NewOrchestrator creates a new pass
func NewOrchestrator(passID string, config Config, deps Dependencies, logger *slog.Logger) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	alerter := deps.Alerter
	if alerter == nil {
		alerter = alert.Nop{}
	}

	return &Orchestrator{
		passID:   passID,
		config:   config,
		state:    &IdleState{},
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		passes:   deps.Recorder,
		notifier: deps.Notifier,
		alerter:  alerter,
		metrics:  deps.Metrics,
		now:      now,
		logger:   logger.With("pass_id", passID, "mode", config.Mode.String()),
	}
}

// GetStateName returns the current state name (for testing)
func (o *Orchestrator) GetStateName() string {
	return o.state.Name()
}

// Timing returns the phase boundaries of the pass
func (o *Orchestrator) Timing() PhaseTiming {
	return o.timing
}

// Run executes the pass to a terminal state. The summary is always returned
// once the pass ran; the error is a *PassError when the pass ended errored.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if _, ok := o.state.(*IdleState); !ok {
		return nil, ErrAlreadyRun
	}
	if o.recorder != nil {
		o.recorder.Record(o.state)
	}

	o.timing.StartedAt = o.now()
	o.run(ctx)
	o.timing.FinishedAt = o.now()

	summary := o.summary()
	o.recordPass(ctx, summary)
	o.observe(summary)

	if o.failure != nil {
		return summary, o.failure
	}
	return summary, nil
}

// transitionTo performs a state transition and logs it
func (o *Orchestrator) transitionTo(newState State) {
	oldStateName := o.state.Name()
	o.state = newState

	if o.recorder != nil {
		o.recorder.Record(newState)
	}

	o.logger.Debug("state transition",
		"from", oldStateName,
		"to", newState.Name())
}

// run is the main pass loop
func (o *Orchestrator) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pass panic recovered", "panic", r)
			o.fail(FailureInternal, fmt.Errorf("panic: %v", r))
			o.transitionTo(&ErroredState{})
			o.runErrored()
		}
	}()

	for {
		switch o.state.(type) {
		case *IdleState:
			o.runIdle()
		case *FetchingState:
			o.runFetching(ctx)
		case *ReconcilingState:
			o.runReconciling(ctx)
		case *PersistingState:
			o.runPersisting(ctx)
		case *NotifyingState:
			o.runNotifying(ctx)
		case *DoneState:
			o.runDone(ctx)
			return
		case *ErroredState:
			o.runErrored()
			return
		default:
			o.logger.Error("unknown state type",
				"state", fmt.Sprintf("%T", o.state))
			o.fail(FailureInternal, fmt.Errorf("unknown state %T", o.state))
			o.transitionTo(&ErroredState{})
		}
	}
}

func (o *Orchestrator) runIdle() {
	state := o.state.(*IdleState)
	o.transitionTo(state.ToFetching())
}

// runFetching reads the remote quest list. Nothing is mutated on failure.
func (o *Orchestrator) runFetching(ctx context.Context) {
	state := o.state.(*FetchingState)
	o.timing.FetchStartedAt = o.now()

	fetchCtx := ctx
	if o.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.config.FetchTimeout)
		defer cancel()
	}

	quests, err := o.fetcher.FetchQuests(fetchCtx)
	if err == nil {
		o.batch, err = quest.NewBatch(quests)
		if err != nil {
			err = fmt.Errorf("%w: %w", discord.ErrMalformedResponse, err)
		}
	}
	if err != nil {
		o.fail(FailureFetch, err)
		if errors.Is(err, discord.ErrUnauthorized) {
			o.alerter.Alert(ctx, alert.Critical, authHint)
		} else {
			o.alerter.Alert(ctx, alert.Warning, fmt.Sprintf("Quest fetch failed: %v", err))
		}
		o.transitionTo(state.ToErrored())
		return
	}

	o.logger.Info("fetched quests", "count", len(o.batch))
	o.transitionTo(state.ToReconciling())
}

// runReconciling reads the snapshot once and computes the plan against it
func (o *Orchestrator) runReconciling(ctx context.Context) {
	state := o.state.(*ReconcilingState)
	o.timing.ReconcileStartedAt = o.now()

	local, err := o.store.Snapshot(ctx)
	if err != nil {
		o.storeFailure(ctx, "snapshot", err)
		o.transitionTo(state.ToErrored())
		return
	}

	plan := reconciler.Reconcile(o.batch.IDs(), local)
	o.plan = plan.Limit(o.config.MaxNotifyPerPass, o.batch.OrderNewestFirst(plan.ToAdd))
	o.tracked = local.Cardinality() + len(o.plan.ToAdd) - len(o.plan.ToRemove)

	if len(o.plan.Deferred) > 0 {
		o.logger.Warn("new quests deferred to a later pass",
			"limit", o.config.MaxNotifyPerPass,
			"deferred", o.plan.Deferred)
	}
	o.logger.Info("reconciled",
		"tracked", local.Cardinality(),
		"to_add", len(o.plan.ToAdd),
		"to_remove", len(o.plan.ToRemove))

	o.transitionTo(state.ToPersisting())
}

// runPersisting writes new ids before pruning old ones so a crash in between
// never loses a new classification
func (o *Orchestrator) runPersisting(ctx context.Context) {
	state := o.state.(*PersistingState)
	o.timing.PersistStartedAt = o.now()

	if o.plan.Empty() {
		o.logger.Debug("nothing to persist")
	} else {
		if err := o.store.InsertAll(ctx, o.plan.ToAdd, o.timing.PersistStartedAt); err != nil {
			o.storeFailure(ctx, "insert", err)
			o.transitionTo(state.ToErrored())
			return
		}
		o.persisted = o.plan.ToAdd
		if err := o.store.RemoveAll(ctx, o.plan.ToRemove); err != nil {
			o.storeFailure(ctx, "remove", err)
			o.transitionTo(state.ToErrored())
			return
		}
	}

	if o.config.Mode == ModeSync {
		o.transitionTo(state.ToDone())
		return
	}
	o.transitionTo(state.ToNotifying())
}

// runNotifying announces the new quests, newest first
func (o *Orchestrator) runNotifying(ctx context.Context) {
	state := o.state.(*NotifyingState)
	o.timing.NotifyStartedAt = o.now()

	ids := o.batch.OrderNewestFirst(o.plan.ToNotify)
	o.result = o.notifier.Notify(ctx, ids, o.batch)

	o.transitionTo(state.ToDone())
}

func (o *Orchestrator) runDone(ctx context.Context) {
	attrs := []any{
		"added", len(o.plan.ToAdd),
		"removed", len(o.plan.ToRemove),
		"notified", len(o.result.Delivered),
		"failed", len(o.result.Failed),
		"deferred", len(o.plan.Deferred),
	}

	if len(o.result.Failed) > 0 {
		o.logger.Warn("pass complete with delivery failures", attrs...)
		o.alerter.Alert(ctx, alert.Warning, fmt.Sprintf(
			"Quest notifications failed for %d of %d quests (added=%d removed=%d notified=%d failed=%d). "+
				"They stay tracked and will not be announced again: %s",
			len(o.result.Failed), len(o.plan.ToNotify),
			len(o.plan.ToAdd), len(o.plan.ToRemove), len(o.result.Delivered), len(o.result.Failed),
			strings.Join(o.result.Failed, ", ")))
		return
	}
	o.logger.Info("pass complete", attrs...)
}

func (o *Orchestrator) runErrored() {
	if o.failure == nil {
		return
	}
	o.logger.Error("pass failed",
		"failure", string(o.failure.Kind),
		"error", o.failure.Err)
}

func (o *Orchestrator) fail(kind FailureKind, err error) {
	o.failure = &PassError{Kind: kind, Err: err}
}

func (o *Orchestrator) storeFailure(ctx context.Context, op string, err error) {
	o.fail(FailureStore, fmt.Errorf("%s: %w", op, err))

	msg := fmt.Sprintf("Quest store failure during %s: %v", op, err)
	if len(o.persisted) > 0 {
		msg += fmt.Sprintf(". Tracked but not announced (retry with `questwatch send <id>`): %s",
			strings.Join(o.persisted, ", "))
		o.logger.Error("new quests tracked but not announced", "quest_ids", o.persisted)
	}
	o.alerter.Alert(ctx, alert.Critical, msg)
}

func (o *Orchestrator) summary() *Summary {
	s := &Summary{
		PassID:     o.passID,
		Mode:       o.config.Mode,
		StartedAt:  o.timing.StartedAt,
		FinishedAt: o.timing.FinishedAt,
		FinalState: o.state.Name(),
		Fetched:    len(o.batch),
		Added:      append([]string{}, o.persisted...),
		Removed:    []string{},
		Deferred:   []string{},
		Notified:   []string{},
		Failed:     []string{},
	}

	// Only inserts can have committed on an errored pass
	if _, ok := o.state.(*DoneState); ok {
		s.Tracked = o.tracked
		s.Removed = append(s.Removed, o.plan.ToRemove...)
		s.Deferred = append(s.Deferred, o.plan.Deferred...)
		s.Notified = append(s.Notified, o.result.Delivered...)
		s.Failed = append(s.Failed, o.result.Failed...)
	}
	return s
}

// recordPass persists the summary, best effort
func (o *Orchestrator) recordPass(ctx context.Context, s *Summary) {
	if o.passes == nil {
		return
	}

	run := &db.PassRun{
		ID:         s.PassID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		FinalState: s.FinalState,
		Fetched:    s.Fetched,
		Added:      len(s.Added),
		Removed:    len(s.Removed),
		Notified:   len(s.Notified),
		Failed:     len(s.Failed),
		Deferred:   len(s.Deferred),
	}
	if o.failure != nil {
		kind := string(o.failure.Kind)
		msg := o.failure.Err.Error()
		run.FailureKind = &kind
		run.Error = &msg
	}

	if err := o.passes.RecordPass(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("failed to record pass", "error", err)
	}
}

func (o *Orchestrator) observe(s *Summary) {
	if o.metrics == nil {
		return
	}

	outcome := metrics.PassOutcome{
		State:    s.FinalState,
		Added:    len(s.Added),
		Removed:  len(s.Removed),
		Deferred: len(s.Deferred),
		Notified: len(s.Notified),
		Failed:   len(s.Failed),
		Tracked:  s.Tracked,
		Duration: s.Duration(),
	}
	if o.failure != nil {
		outcome.Failure = string(o.failure.Kind)
	}
	o.metrics.ObservePass(outcome)
}
