package alert

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 4,
	}))
}

type recordingSender struct {
	mu       sync.Mutex
	messages []webhook.Message
	err      error
	block    chan struct{}
}

func (s *recordingSender) Deliver(ctx context.Context, msg webhook.Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSender) contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Content
	}
	return out
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", Info.String())
	assert.Equal(t, "warning", Warning.String())
	assert.Equal(t, "critical", Critical.String())
	assert.Equal(t, "unknown", Severity(42).String())
}

func TestWebhookAlerter_Sends(t *testing.T) {
	sender := &recordingSender{}
	a := NewWebhookAlerter(sender, time.Second, createTestLogger())

	a.Alert(context.Background(), Critical, "tokens expired")
	a.Alert(context.Background(), Warning, "2 deliveries failed")

	assert.Equal(t, []string{"🚨 tokens expired", "⚠️ 2 deliveries failed"}, sender.contents())
}

func TestWebhookAlerter_SendFailureSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	a := NewWebhookAlerter(sender, time.Second, createTestLogger())

	assert.NotPanics(t, func() {
		a.Alert(context.Background(), Critical, "x")
	})
	assert.Len(t, sender.contents(), 1)
}

func TestWebhookAlerter_NoSenderOnlyLogs(t *testing.T) {
	a := NewWebhookAlerter(nil, time.Second, createTestLogger())
	assert.NotPanics(t, func() {
		a.Alert(context.Background(), Info, "x")
	})
}

func TestAsync_DeliversInOrderOnClose(t *testing.T) {
	sender := &recordingSender{}
	async := NewAsync(NewWebhookAlerter(sender, time.Second, createTestLogger()), 8, 10*time.Millisecond, createTestLogger())

	async.Alert(context.Background(), Info, "one")
	async.Alert(context.Background(), Warning, "two")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, async.Close(ctx))

	assert.Equal(t, []string{"ℹ️ one", "⚠️ two"}, sender.contents())

	assert.Zero(t, async.Dropped())

	// Closed alerter drops quietly
	async.Alert(context.Background(), Info, "late")
	assert.Len(t, sender.contents(), 2)
	assert.Equal(t, int64(1), async.Dropped())
}

func TestAsync_FullQueueDrops(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	async := NewAsync(NewWebhookAlerter(sender, 0, createTestLogger()), 1, time.Millisecond, createTestLogger())

	// One alert held by the sender, one queued, the rest cannot wait
	for i := 0; i < 5; i++ {
		async.Alert(context.Background(), Warning, "flood")
	}
	assert.GreaterOrEqual(t, async.Dropped(), int64(3))

	close(sender.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, async.Close(ctx))
}

func TestAsync_CloseGivesUpAtDeadline(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	defer close(sender.block)
	async := NewAsync(NewWebhookAlerter(sender, 0, createTestLogger()), 8, 10*time.Millisecond, createTestLogger())

	async.Alert(context.Background(), Critical, "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, async.Close(ctx), context.DeadlineExceeded)
}

func TestNop(t *testing.T) {
	var a Alerter = Nop{}
	assert.NotPanics(t, func() { a.Alert(context.Background(), Critical, "x") })
}
