package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/format"
	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/livinlefevreloca/questwatch/internal/testutil"
	"github.com/livinlefevreloca/questwatch/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, cfg Config, deliverer Deliverer) *Notifier {
	t.Helper()
	f, err := format.New(format.DefaultConfig())
	require.NoError(t, err)
	return New(cfg, f, deliverer, testutil.NewTestLogger().Logger())
}

func makeBatch(t *testing.T, ids ...string) quest.Batch {
	t.Helper()
	quests := make([]quest.Quest, len(ids))
	for i, id := range ids {
		quests[i] = testutil.MakeQuest(id, time.Now())
	}
	batch, err := quest.NewBatch(quests)
	require.NoError(t, err)
	return batch
}

func TestNotify_DeliversInOrder(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	n := newTestNotifier(t, Config{}, deliverer)

	result := n.Notify(context.Background(), []string{"q3", "q1", "q2"}, makeBatch(t, "q1", "q2", "q3"))

	assert.Equal(t, []string{"q3", "q1", "q2"}, result.Delivered)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"q3", "q1", "q2"}, deliverer.DeliveredIDs())

	msg := deliverer.Messages()[0]
	assert.Equal(t, format.DefaultContent, msg.Content)
	assert.Equal(t, "Game q3", msg.Embeds[0].Title)
}

func TestNotify_FailureIsolation(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	deliverer.FailFor("q2", webhook.ErrRejected)
	n := newTestNotifier(t, Config{}, deliverer)

	result := n.Notify(context.Background(), []string{"q1", "q2", "q3"}, makeBatch(t, "q1", "q2", "q3"))

	assert.Equal(t, []string{"q1", "q3"}, result.Delivered)
	assert.Equal(t, []string{"q2"}, result.Failed)
	assert.ErrorIs(t, result.Errors["q2"], webhook.ErrRejected)
}

func TestNotify_MissingRecord(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	n := newTestNotifier(t, Config{}, deliverer)

	result := n.Notify(context.Background(), []string{"q1", "ghost"}, makeBatch(t, "q1"))

	assert.Equal(t, []string{"q1"}, result.Delivered)
	assert.Equal(t, []string{"ghost"}, result.Failed)
	assert.ErrorIs(t, result.Errors["ghost"], ErrMissingRecord)
}

func TestNotify_EmptyInput(t *testing.T) {
	n := newTestNotifier(t, Config{}, testutil.NewMockDeliverer())

	result := n.Notify(context.Background(), nil, quest.Batch{})
	assert.Empty(t, result.Delivered)
	assert.Empty(t, result.Failed)
}

func TestNotify_MinimumInterval(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	n := newTestNotifier(t, Config{MinInterval: 30 * time.Millisecond}, deliverer)

	start := time.Now()
	result := n.Notify(context.Background(), []string{"q1", "q2", "q3"}, makeBatch(t, "q1", "q2", "q3"))
	elapsed := time.Since(start)

	assert.Len(t, result.Delivered, 3)
	// Three dispatch starts need at least two intervals between them
	assert.GreaterOrEqual(t, elapsed, 55*time.Millisecond)
}

func TestNotify_AttemptTimeout(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	deliverer.SetDelay(time.Second)
	n := newTestNotifier(t, Config{Timeout: 20 * time.Millisecond}, deliverer)

	start := time.Now()
	result := n.Notify(context.Background(), []string{"q1", "q2"}, makeBatch(t, "q1", "q2"))

	assert.Equal(t, []string{"q1", "q2"}, result.Failed)
	assert.ErrorIs(t, result.Errors["q1"], context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNotify_CancelledContextFailsRemaining(t *testing.T) {
	deliverer := testutil.NewMockDeliverer()
	n := newTestNotifier(t, Config{MinInterval: time.Hour}, deliverer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := n.Notify(ctx, []string{"q1", "q2"}, makeBatch(t, "q1", "q2"))

	assert.Equal(t, []string{"q1"}, result.Delivered)
	assert.Equal(t, []string{"q2"}, result.Failed)
	assert.ErrorIs(t, result.Errors["q2"], context.Canceled)
}
