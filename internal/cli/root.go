// Package cli implements the nexriftctl commands.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nexriftctl",
	Short: "Control a running NexRift shell",
	Long: `nexriftctl talks to the running NexRift shell over its local control port.
It can start, stop and restart the Python backend, read and replace the
settings document, and show captured backend logs.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands (alphabetical)
	rootCmd.AddCommand(backendCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(quitCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
