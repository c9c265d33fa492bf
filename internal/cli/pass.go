package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/livinlefevreloca/questwatch/internal/alert"
	"github.com/livinlefevreloca/questwatch/internal/config"
	"github.com/livinlefevreloca/questwatch/internal/metrics"
	"github.com/livinlefevreloca/questwatch/internal/orchestrator"
	"github.com/livinlefevreloca/questwatch/internal/passlock"
	"github.com/spf13/cobra"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one pass and announce new quests",
		Long: `Fetch the quests offered to the account, track new ones, forget
withdrawn ones and post every new quest to the webhook.

Meant to be started by cron or a systemd timer. Exit codes:
  0  pass completed (individual delivery failures are alerted)
  1  fetch failure or command error
  2  store failure`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(cmd, orchestrator.ModeNotify)
		},
	}
}

// SyncCmd returns the sync command
func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one pass without announcing anything",
		Long: `Bring tracking in line with Discord without posting: new quests are
recorded as seen and withdrawn ones are forgotten. Use it to seed a fresh
store so the next run does not announce every quest already on offer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(cmd, orchestrator.ModeSync)
		},
	}
}

func runPass(cmd *cobra.Command, mode orchestrator.Mode) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Pass.LockFile != "" {
		lock, err := passlock.Acquire(a.cfg.Pass.LockFile)
		if err != nil {
			if errors.Is(err, passlock.ErrLocked) {
				a.logger.Warn("another pass is running, nothing to do", "lock_file", a.cfg.Pass.LockFile)
			}
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				a.logger.Warn("failed to release pass lock", "error", err)
			}
		}()
	}

	var n orchestrator.Notifier
	if mode == orchestrator.ModeNotify {
		n, err = a.notifier()
		if err != nil {
			return err
		}
	}

	alerts := a.alerter()
	defer a.closeAlerter(alerts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	preflight(ctx, a, alerts)

	m := metrics.New()
	passID := uuid.NewString()
	orch := orchestrator.NewOrchestrator(passID, orchestrator.Config{
		FetchTimeout:     a.cfg.Pass.FetchTimeout,
		MaxNotifyPerPass: a.cfg.Pass.MaxNotifyPerPass,
		Mode:             mode,
	}, orchestrator.Dependencies{
		Fetcher:  a.discordClient(),
		Store:    a.store,
		Recorder: a.store,
		Notifier: n,
		Alerter:  alerts,
		Metrics:  m,
	}, a.logger)

	summary, passErr := orch.Run(ctx)

	if err := metrics.NewPusher(a.cfg.Metrics, m).Push(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("failed to push metrics", "error", err)
	}

	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	if passErr != nil {
		code := ExitFailure
		var pe *orchestrator.PassError
		if errors.As(passErr, &pe) && pe.Kind == orchestrator.FailureStore {
			code = ExitStoreFailed
		}
		return &ExitError{Code: code, Err: passErr}
	}
	return nil
}

// preflight warns early when the Discord credentials are missing. The pass
// still runs so the failure is recorded and classified.
func preflight(ctx context.Context, a *app, alerts alert.Alerter) {
	if a.cfg.HasDiscordTokens() {
		return
	}
	alerts.Alert(ctx, alert.Warning, fmt.Sprintf(
		"Discord tokens missing: set %s and %s before the next pass.",
		config.EnvAuthorization, config.EnvSuperProperties))
}
