package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/livinlefevreloca/questwatch/internal/orchestrator"
	"github.com/livinlefevreloca/questwatch/internal/store"
	"github.com/spf13/cobra"
)

// ListCmd returns the list command
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked quests with the time they were first seen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.Entries(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}

			loc, err := time.LoadLocation(a.cfg.Format.Timezone)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries, loc)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []store.Entry, loc *time.Location) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No quests have been seen yet.")
		return
	}

	fmt.Fprintf(w, "Tracked quests (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  - %s %s\n",
			color.New(color.FgCyan).Sprint(e.QuestID),
			color.New(color.Faint).Sprintf("(seen: %s)", e.FirstSeen.In(loc).Format("2006-01-02 15:04:05")))
	}
}

func printSummary(w io.Writer, s *orchestrator.Summary) {
	state := color.New(color.FgGreen).Sprint(s.FinalState)
	if s.FinalState != "done" {
		state = color.New(color.FgRed).Sprint(s.FinalState)
	}

	fmt.Fprintf(w, "Pass %s (%s): %s in %s\n", s.PassID, s.Mode, state, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  fetched=%d tracked=%d added=%d removed=%d notified=%d failed=%d deferred=%d\n",
		s.Fetched, s.Tracked, len(s.Added), len(s.Removed), len(s.Notified), len(s.Failed), len(s.Deferred))
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "  %s %v\n", color.New(color.FgYellow).Sprint("failed:"), s.Failed)
	}
}
