package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ResetCmd returns the reset command
func ResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget every tracked quest",
		Long: `Clear the store. The next run announces every quest currently on
offer again; run sync afterwards to avoid that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear tracked quests without --yes")
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.Clear(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}
			a.logger.Info("tracked quests cleared", "count", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tracked quests.\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the store")
	return cmd
}

// PurgeCmd returns the purge command
func PurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Forget quests first seen more than N days ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--older-than-days must be positive, got %d", days)
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			n, err := a.store.PurgeBefore(cmd.Context(), cutoff)
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}
			remaining, err := a.store.Count(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}
			a.logger.Info("old quests purged", "count", n, "remaining", remaining, "cutoff", cutoff)
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d quests first seen before %s, %d still tracked.\n",
				n, cutoff.Format(time.DateOnly), remaining)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "older-than-days", 180, "Age in days past which entries are removed")
	return cmd
}

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.RecentPasses(cmd.Context(), limit)
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No passes recorded yet.")
				return nil
			}
			for _, r := range runs {
				state := color.New(color.FgGreen).Sprint(r.FinalState)
				if r.FinalState != "done" {
					state = color.New(color.FgRed).Sprint(r.FinalState)
				}
				fmt.Fprintf(w, "%s  %s  %-7s fetched=%d added=%d removed=%d notified=%d failed=%d deferred=%d\n",
					r.StartedAt.Local().Format(time.DateTime), r.ID[:min(8, len(r.ID))], state,
					r.Fetched, r.Added, r.Removed, r.Notified, r.Failed, r.Deferred)
				if r.Error != nil {
					fmt.Fprintf(w, "    %s\n", color.New(color.FgYellow).Sprint(*r.Error))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of passes to show")
	return cmd
}
