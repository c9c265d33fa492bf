package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd returns the questwatch command with every subcommand attached
func RootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "questwatch",
		Short:   "Announce new Discord quests to a webhook",
		Version: version,
		Long: `questwatch polls the Discord quest list, remembers which quests it
has already seen in a local SQLite store and posts the new ones to one or
more Discord webhooks. Operator alerts go to a separate alert channel.

Configuration comes from a TOML file (--config) with DISCORD_AUTHORIZATION,
TOKEN_JWT, WEBHOOK_URL, WEBHOOK_URL_ALERT and QUESTWATCH_DB taking precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (TOML)")

	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(SyncCmd())
	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(ResetCmd())
	rootCmd.AddCommand(PurgeCmd())
	rootCmd.AddCommand(SendCmd())
	rootCmd.AddCommand(HistoryCmd())

	return rootCmd
}
