package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/spf13/cobra"
)

// SendCmd returns the send command
func SendCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "send [quest-id...]",
		Short: "Post quests to the webhook regardless of tracking",
		Long: `Fetch the current quests and post the given ones, or every quest with
--all, newest first. Tracking is neither read nor changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("pass quest ids or --all, not both")
			case !all && len(args) == 0:
				return errors.New("pass at least one quest id, or --all")
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.notifier()
			if err != nil {
				return err
			}

			fetchCtx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Pass.FetchTimeout)
			defer cancel()
			quests, err := a.discordClient().FetchQuests(fetchCtx)
			if err != nil {
				return err
			}
			batch, err := quest.NewBatch(quests)
			if err != nil {
				return err
			}

			ids := args
			if all {
				ids = batch.IDs().ToSlice()
			}
			var missing []string
			for _, id := range ids {
				if _, ok := batch[id]; !ok {
					missing = append(missing, id)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("quests not offered right now: %s", strings.Join(missing, ", "))
			}

			result := n.Notify(cmd.Context(), batch.OrderNewestFirst(ids), batch)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d of %d quests.\n", len(result.Delivered), len(ids))
			if len(result.Failed) > 0 {
				return fmt.Errorf("delivery failed for %s", strings.Join(result.Failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Send every quest currently offered")
	return cmd
}
