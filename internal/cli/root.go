// Package cli wires the trivia progression service into cobra commands:
// start serves the REST and websocket APIs, migrate manages the Postgres
// schema and seed publishes a catalog file.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var port, configPath string

	cmd := &cobra.Command{
		Use:   "trivia-service",
		Short: "Daily trivia service with points, unlockable rewards and a leaderboard",
		Long: "Serves one question per UTC day to every user, records at most one answer per user and day, " +
			"and derives points, reward unlocks and leaderboard ranks from that ledger.",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&port, "port", envOr("PORT", "8080"), "HTTP listen port (env PORT)")
	flags.StringVar(&configPath, "config", envOr("CONFIG_PATH", "config/config.yaml"), "YAML config path (env CONFIG_PATH)")

	cmd.AddCommand(
		NewStartCmd(&configPath, &port),
		NewMigrateCmd(&configPath),
		NewSeedCmd(&configPath),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
