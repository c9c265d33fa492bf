package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/livinlefevreloca/questwatch/internal/alert"
	"github.com/livinlefevreloca/questwatch/internal/db"
	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/livinlefevreloca/questwatch/internal/store"
	"github.com/livinlefevreloca/questwatch/internal/webhook"
)

// MakeQuest builds a minimal valid quest
func MakeQuest(id string, startsAt time.Time) quest.Quest {
	return quest.Quest{Config: quest.Config{
		ID:        id,
		StartsAt:  startsAt,
		ExpiresAt: startsAt.Add(14 * 24 * time.Hour),
		Messages: quest.Messages{
			QuestName:     "Quest " + id,
			GameTitle:     "Game " + id,
			GamePublisher: "Publisher",
		},
	}}
}

// =============================================================================
// Fetcher
// =============================================================================

// MockFetcher returns a canned quest list
type MockFetcher struct {
	mu     sync.Mutex
	quests []quest.Quest
	err    error
	calls  int
}

func NewMockFetcher(quests ...quest.Quest) *MockFetcher {
	return &MockFetcher{quests: quests}
}

func (m *MockFetcher) SetQuests(quests ...quest.Quest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quests = quests
	m.err = nil
}

func (m *MockFetcher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockFetcher) FetchQuests(ctx context.Context) ([]quest.Quest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.quests), nil
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// =============================================================================
// Deliverer
// =============================================================================

// MockDeliverer records delivered messages. Failures are keyed by the quest
// id found in the embed footer.
type MockDeliverer struct {
	mu       sync.Mutex
	messages []webhook.Message
	failures map[string]error
	err      error
	delay    time.Duration
}

func NewMockDeliverer() *MockDeliverer {
	return &MockDeliverer{failures: make(map[string]error)}
}

// FailFor makes deliveries of questID fail with err
func (m *MockDeliverer) FailFor(questID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[questID] = err
}

// FailAll makes every delivery fail with err
func (m *MockDeliverer) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes each delivery take d, or less if ctx ends first
func (m *MockDeliverer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MockDeliverer) Deliver(ctx context.Context, msg webhook.Message) error {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if err, ok := m.failures[MessageQuestID(msg)]; ok {
		return err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockDeliverer) Messages() []webhook.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// DeliveredIDs returns the quest ids of successful deliveries in order
func (m *MockDeliverer) DeliveredIDs() []string {
	msgs := m.Messages()
	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, MessageQuestID(msg))
	}
	return ids
}

// MessageQuestID extracts the quest id from an embed footer "ID: <id>"
func MessageQuestID(msg webhook.Message) string {
	if len(msg.Embeds) == 0 || msg.Embeds[0].Footer == nil {
		return ""
	}
	return strings.TrimPrefix(msg.Embeds[0].Footer.Text, "ID: ")
}

// =============================================================================
// Alerter
// =============================================================================

type AlertRecord struct {
	Severity alert.Severity
	Message  string
}

// MockAlerter records alerts
type MockAlerter struct {
	mu     sync.Mutex
	alerts []AlertRecord
}

func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

func (m *MockAlerter) Alert(_ context.Context, severity alert.Severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, AlertRecord{Severity: severity, Message: message})
}

func (m *MockAlerter) Alerts() []AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.alerts)
}

// =============================================================================
// Store
// =============================================================================

// MockStore is an in-memory store.Store and store.PassRecorder with
// failure injection
type MockStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	passes    []db.PassRun
	failAfter int // inserts allowed before InsertAll fails, -1 disables

	SnapshotErr  error
	InsertErr    error
	RemoveErr    error
	RecordErr    error
	InsertCalls  int
	RemoveCalls  int
	SnapshotRead int
}

func NewMockStore(ids ...string) *MockStore {
	m := &MockStore{entries: make(map[string]time.Time), failAfter: -1}
	for _, id := range ids {
		m.entries[id] = time.Time{}
	}
	return m
}

// FailInsertAfter makes InsertAll fail once n ids of the batch are applied.
// The partial batch stays applied, modelling a medium without transactions.
func (m *MockStore) FailInsertAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.InsertErr = err
}

func (m *MockStore) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *MockStore) Snapshot(context.Context) (mapset.Set[string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SnapshotRead++
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	ids := mapset.NewSet[string]()
	for id := range m.entries {
		ids.Add(id)
	}
	return ids, nil
}

func (m *MockStore) Insert(ctx context.Context, id string, firstSeen time.Time) error {
	return m.InsertAll(ctx, []string{id}, firstSeen)
}

func (m *MockStore) Remove(ctx context.Context, id string) error {
	return m.RemoveAll(ctx, []string{id})
}

func (m *MockStore) InsertAll(_ context.Context, ids []string, firstSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	if m.InsertErr != nil && m.failAfter < 0 {
		return m.InsertErr
	}
	for i, id := range ids {
		if m.failAfter >= 0 && i >= m.failAfter {
			return m.InsertErr
		}
		if _, ok := m.entries[id]; !ok {
			m.entries[id] = firstSeen
		}
	}
	return nil
}

func (m *MockStore) RemoveAll(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MockStore) Clear(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.entries))
	m.entries = make(map[string]time.Time)
	return n, nil
}

func (m *MockStore) Entries(context.Context) ([]store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]store.Entry, 0, len(m.entries))
	for id, ts := range m.entries {
		entries = append(entries, store.Entry{QuestID: id, FirstSeen: ts})
	}
	slices.SortFunc(entries, func(a, b store.Entry) int {
		if c := b.FirstSeen.Compare(a.FirstSeen); c != 0 {
			return c
		}
		return strings.Compare(a.QuestID, b.QuestID)
	})
	return entries, nil
}

func (m *MockStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, ts := range m.entries {
		if ts.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *MockStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *MockStore) RecordPass(_ context.Context, run *db.PassRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.passes = append(m.passes, *run)
	return nil
}

func (m *MockStore) RecentPasses(_ context.Context, limit int) ([]db.PassRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.passes)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ store.Store        = (*MockStore)(nil)
	_ store.PassRecorder = (*MockStore)(nil)
	_ alert.Alerter      = (*MockAlerter)(nil)
)
