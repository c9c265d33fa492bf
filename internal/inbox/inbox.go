package inbox

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Inbox is a bounded typed queue between one or more producers and a single
// consumer. Producers never block longer than the send timeout.
type Inbox[T any] struct {
	ch      chan T
	timeout time.Duration
	logger  *slog.Logger
	stats   *Stats

	mu     sync.RWMutex
	closed bool
}

// Stats tracks inbox usage
type Stats struct {
	TotalSent     int64
	TotalReceived int64
	TimeoutCount  int64
	DroppedClosed int64
	MaxDepthSeen  int64
}

// New creates a new inbox with the specified buffer size and send timeout
func New[T any](bufferSize int, timeout time.Duration, logger *slog.Logger) *Inbox[T] {
	return &Inbox[T]{
		ch:      make(chan T, bufferSize),
		timeout: timeout,
		logger:  logger,
		stats:   &Stats{},
	}
}

// Send enqueues msg, waiting at most the send timeout for room.
// Returns false if the message was dropped.
func (ib *Inbox[T]) Send(msg T) bool {
	ib.mu.RLock()
	defer ib.mu.RUnlock()

	if ib.closed {
		atomic.AddInt64(&ib.stats.DroppedClosed, 1)
		return false
	}

	timer := time.NewTimer(ib.timeout)
	defer timer.Stop()

	select {
	case ib.ch <- msg:
		atomic.AddInt64(&ib.stats.TotalSent, 1)
		ib.recordDepth()
		return true
	case <-timer.C:
		atomic.AddInt64(&ib.stats.TimeoutCount, 1)
		ib.logger.Warn("inbox send timeout",
			"timeout", ib.timeout,
			"current_depth", len(ib.ch))
		return false
	}
}

// Receive blocks until a message is available. It returns false once the
// inbox is closed and drained.
func (ib *Inbox[T]) Receive() (T, bool) {
	msg, ok := <-ib.ch
	if ok {
		atomic.AddInt64(&ib.stats.TotalReceived, 1)
	}
	return msg, ok
}

func (ib *Inbox[T]) recordDepth() {
	depth := int64(len(ib.ch))
	for {
		seen := atomic.LoadInt64(&ib.stats.MaxDepthSeen)
		if depth <= seen || atomic.CompareAndSwapInt64(&ib.stats.MaxDepthSeen, seen, depth) {
			return
		}
	}
}

// GetStats returns a copy of the current inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	return Stats{
		TotalSent:     atomic.LoadInt64(&ib.stats.TotalSent),
		TotalReceived: atomic.LoadInt64(&ib.stats.TotalReceived),
		TimeoutCount:  atomic.LoadInt64(&ib.stats.TimeoutCount),
		DroppedClosed: atomic.LoadInt64(&ib.stats.DroppedClosed),
		MaxDepthSeen:  atomic.LoadInt64(&ib.stats.MaxDepthSeen),
	}
}

// Len returns the current number of messages in the inbox
func (ib *Inbox[T]) Len() int {
	return len(ib.ch)
}

// Close stops accepting messages. Queued messages can still be received.
// Closing twice is a no-op.
func (ib *Inbox[T]) Close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	if ib.closed {
		return
	}
	ib.closed = true
	close(ib.ch)
}
