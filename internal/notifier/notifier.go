// Package notifier announces new quests, one message per quest.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/livinlefevreloca/questwatch/internal/webhook"
	"golang.org/x/time/rate"
)

// ErrMissingRecord is reported for an id absent from the fetch batch
var ErrMissingRecord = errors.New("notifier: quest not in batch")

// Formatter renders a quest as a message
type Formatter interface {
	Format(q quest.Quest) webhook.Message
}

// Deliverer sends a message to the quest channel
type Deliverer interface {
	Deliver(ctx context.Context, msg webhook.Message) error
}

// Config holds the dispatch settings
type Config struct {
	// MinInterval is the minimum delay between the start of two deliveries
	MinInterval time.Duration
	// Timeout bounds a single delivery attempt
	Timeout time.Duration
}

// Result reports the outcome of a sweep. Delivered and Failed keep input order.
type Result struct {
	Delivered []string
	Failed    []string
	Errors    map[string]error
}

// Notifier delivers announcements with failure isolation between quests
type Notifier struct {
	formatter Formatter
	deliverer Deliverer
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Notifier
func New(config Config, formatter Formatter, deliverer Deliverer, logger *slog.Logger) *Notifier {
	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}
	return &Notifier{
		formatter: formatter,
		deliverer: deliverer,
		limiter:   rate.NewLimiter(limit, 1),
		timeout:   config.Timeout,
		logger:    logger,
	}
}

// Notify announces every id in order, taking records from batch. A failure
// is recorded against its id and never stops the sweep.
func (n *Notifier) Notify(ctx context.Context, ids []string, batch quest.Batch) Result {
	result := Result{
		Delivered: []string{},
		Failed:    []string{},
		Errors:    make(map[string]error),
	}

	for i, id := range ids {
		if err := n.notifyOne(ctx, id, batch); err != nil {
			result.Failed = append(result.Failed, id)
			result.Errors[id] = err
			n.logger.Warn("quest notification failed",
				"quest_id", id,
				"position", i+1,
				"error", err)
			continue
		}
		result.Delivered = append(result.Delivered, id)
		n.logger.Info("quest notified",
			"quest_id", id,
			"quest_name", batch[id].Name(),
			"position", i+1)
	}

	return result
}

func (n *Notifier) notifyOne(ctx context.Context, id string, batch quest.Batch) error {
	q, ok := batch[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingRecord, id)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for delivery slot: %w", err)
	}

	attemptCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	return n.deliverer.Deliver(attemptCtx, n.formatter.Format(q))
}
