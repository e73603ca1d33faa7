// Package cmd implements the nexrift shell command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/shell"
	"github.com/bongobongo2020/nexrift/internal/shell/server"
)

var (
	flagDev      bool
	flagHeadless bool
	flagPort     int
)

var rootCmd = &cobra.Command{
	Use:   "nexrift",
	Short: "NexRift desktop shell",
	Long: `NexRift shows the app manager dashboard in a native window and supervises
its Python backend. The dashboard and a local control service are served on
127.0.0.1; use nexriftctl to talk to a running shell.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

func init() {
	rootCmd.Flags().BoolVar(&flagDev, "dev", false, "Development mode: do not start the backend, open the inspector, reload the dashboard on change")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run without window or tray until interrupted")
	rootCmd.Flags().IntVar(&flagPort, "port", server.DefaultPort, "Port for the dashboard and control service (0 picks a free port)")
}

// Execute runs the shell command line.
func Execute() error {
	return rootCmd.Execute()
}

func runShell(cmd *cobra.Command, args []string) error {
	logging.SetDebug(flagDev)
	log := logging.NewDefault().Component("shell")

	s, err := shell.Init(shell.Options{
		Dev:      flagDev,
		Headless: flagHeadless,
		Port:     flagPort,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	return s.Run()
}
