// Package alert reports operational problems to an operator channel.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/webhook"
)

// Severity of an alert
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) prefix() string {
	switch s {
	case Warning:
		return "⚠️"
	case Critical:
		return "🚨"
	default:
		return "ℹ️"
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case Warning:
		return slog.LevelWarn
	case Critical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Alerter delivers alerts on a best effort basis. It never fails the caller.
type Alerter interface {
	Alert(ctx context.Context, severity Severity, message string)
}

// Sender is the transport used for alert messages
type Sender interface {
	Deliver(ctx context.Context, msg webhook.Message) error
}

// WebhookAlerter logs every alert and posts it to the alert channel
type WebhookAlerter struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
}

// NewWebhookAlerter creates an alerter. A nil sender only logs.
func NewWebhookAlerter(sender Sender, timeout time.Duration, logger *slog.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
	}
}

func (a *WebhookAlerter) Alert(ctx context.Context, severity Severity, message string) {
	a.logger.Log(ctx, severity.level(), "alert",
		"severity", severity.String(),
		"message", message)

	if a.sender == nil {
		a.logger.Warn("alert not sent, no alert webhook configured", "severity", severity.String())
		return
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.sender.Deliver(ctx, webhook.Text(severity.prefix()+" "+message)); err != nil {
		a.logger.Error("failed to send alert", "severity", severity.String(), "error", err)
	}
}

// Nop discards alerts
type Nop struct{}

func (Nop) Alert(context.Context, Severity, string) {}
