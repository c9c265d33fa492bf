package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/livinlefevreloca/questwatch/internal/alert"
	"github.com/livinlefevreloca/questwatch/internal/config"
	"github.com/livinlefevreloca/questwatch/internal/db"
	"github.com/livinlefevreloca/questwatch/internal/discord"
	"github.com/livinlefevreloca/questwatch/internal/format"
	"github.com/livinlefevreloca/questwatch/internal/notifier"
	"github.com/livinlefevreloca/questwatch/internal/store"
	"github.com/livinlefevreloca/questwatch/internal/webhook"
	"github.com/livinlefevreloca/questwatch/tools/migrator"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitStoreFailed = 2
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// app holds what every command needs once the config is loaded
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
	store  *store.SQLStore
}

// loadApp reads the config, builds the logger and opens the migrated store
func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging, cmd.ErrOrStderr())

	if err := ensureDir(cfg.Database.DSN); err != nil {
		return nil, &ExitError{Code: ExitStoreFailed, Err: fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)}
	}

	database, err := db.OpenWithConfig(cfg.Database)
	if err != nil {
		return nil, &ExitError{Code: ExitStoreFailed, Err: fmt.Errorf("%w: open %s: %v", store.ErrStoreUnavailable, cfg.Database.DSN, err)}
	}
	if err := database.Migrate(cfg.Database); err != nil {
		database.Close()
		return nil, &ExitError{Code: ExitStoreFailed, Err: fmt.Errorf("failed to run migrations: %w", err)}
	}
	if version, err := migrator.GetCurrentVersion(database.DB); err == nil {
		logger.Debug("database schema ready", "version", version)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		store:  store.NewSQLStore(database),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// ensureDir creates the parent directory of a file DSN
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}

// newLogger builds the process logger from the logging settings
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (a *app) discordClient() *discord.Client {
	return discord.NewClient(a.cfg.Discord, nil, a.logger.With("component", "discord"))
}

func (a *app) notifier() (*notifier.Notifier, error) {
	formatter, err := format.New(a.cfg.Format)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Webhook.URLs) == 0 {
		return nil, fmt.Errorf("no webhook URLs configured (set %s or webhook.urls)", config.EnvWebhookURL)
	}

	delivery := webhook.NewClient(a.cfg.Webhook, nil, a.logger.With("component", "webhook"))
	return notifier.New(notifier.Config{
		MinInterval: a.cfg.Pass.DeliveryMinInterval,
		Timeout:     a.cfg.Pass.DeliveryTimeout,
	}, formatter, delivery, a.logger.With("component", "notifier")), nil
}

// alerter starts the background alert queue. Callers must close it with
// closeAlerter so queued alerts go out before exit.
func (a *app) alerter() *alert.Async {
	alertLogger := a.logger.With("component", "alert")

	var sender alert.Sender
	if wc := a.cfg.AlertWebhook(); len(wc.URLs) > 0 {
		sender = webhook.NewClient(wc, nil, alertLogger)
	}

	return alert.NewAsync(
		alert.NewWebhookAlerter(sender, a.cfg.Webhook.Timeout, alertLogger),
		a.cfg.Alert.BufferSize,
		a.cfg.Alert.SendTimeout,
		alertLogger,
	)
}

func (a *app) closeAlerter(alerts *alert.Async) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Alert.DrainTimeout)
	defer cancel()
	if err := alerts.Close(ctx); err != nil {
		a.logger.Warn("alerts not delivered before exit", "error", err)
	}
	if n := alerts.Dropped(); n > 0 {
		a.logger.Warn("alerts dropped", "count", n)
	}
}
