package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/inbox"
)

type queued struct {
	severity Severity
	message  string
}

// Async queues alerts on a bounded inbox and delivers them from one
// background goroutine so callers never wait on the alert channel.
type Async struct {
	next   Alerter
	inbox  *inbox.Inbox[queued]
	done   chan struct{}
	logger *slog.Logger
}

// NewAsync starts the delivery goroutine. Call Close to drain it.
func NewAsync(next Alerter, bufferSize int, sendTimeout time.Duration, logger *slog.Logger) *Async {
	a := &Async{
		next:   next,
		inbox:  inbox.New[queued](bufferSize, sendTimeout, logger),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for {
		msg, ok := a.inbox.Receive()
		if !ok {
			return
		}
		a.next.Alert(context.Background(), msg.severity, msg.message)
	}
}

// Alert enqueues the alert. It is dropped, with a log line, if the queue
// stays full past the send timeout or the alerter is closed.
func (a *Async) Alert(_ context.Context, severity Severity, message string) {
	if !a.inbox.Send(queued{severity: severity, message: message}) {
		a.logger.Warn("alert dropped", "severity", severity.String(), "message", message)
	}
}

// Dropped returns how many alerts never made it onto the queue
func (a *Async) Dropped() int64 {
	stats := a.inbox.GetStats()
	return stats.TimeoutCount + stats.DroppedClosed
}

// Close stops accepting alerts and waits for queued ones to be delivered,
// giving up when ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.inbox.Close()
	select {
	case <-a.done:
		stats := a.inbox.GetStats()
		a.logger.Debug("alert queue drained",
			"sent", stats.TotalSent,
			"delivered", stats.TotalReceived,
			"max_depth", stats.MaxDepthSeen)
		return nil
	case <-ctx.Done():
		a.logger.Warn("alert queue not drained", "pending", a.inbox.Len())
		return ctx.Err()
	}
}
