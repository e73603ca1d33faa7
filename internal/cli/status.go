package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bongobongo2020/nexrift/internal/shell/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shell and backend status",
	RunE:  runStatus,
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Stop the backend and quit NexRift",
	RunE:  runQuit,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withShell(func(ctx context.Context, client *server.ShellServiceClient) error {
		st, err := client.GetStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		fmt.Print(renderStatus(st, time.Now()))
		return nil
	})
}

func renderStatus(st *server.ShellStatus, now time.Time) string {
	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", styleLabel.Render(fmt.Sprintf("%-10s", label)), styleValue.Render(value))
	}

	mode := ""
	if st.Dev {
		mode = " " + styleWarning.Render("dev")
	}
	fmt.Fprintf(&b, "%s %s%s\n", styleBrand.Render("NexRift"), styleVersion.Render(st.Version), mode)
	row("Address", fmt.Sprintf("http://%s:%d", st.Host, st.Port))
	row("PID", fmt.Sprint(st.PID))
	row("Uptime", formatUptime(now.Sub(st.StartedAt)))
	if st.Dashboard != "" {
		row("Dashboard", st.Dashboard)
	} else {
		row("Dashboard", "not found")
	}

	be := st.Backend
	fmt.Fprintf(&b, "\n%s %s\n", styleBrand.Render("Backend"), stateBadge(string(be.State)))
	if be.PID != 0 {
		row("PID", fmt.Sprint(be.PID))
		row("Python", be.Interpreter)
		row("Script", be.Script)
		row("Uptime", formatUptime(now.Sub(be.StartedAt)))
	}
	if be.LastExitCode != nil {
		row("Last exit", fmt.Sprint(*be.LastExitCode))
	}
	if be.LastError != "" {
		fmt.Fprintf(&b, "  %s\n", styleError.Render(be.LastError))
	}
	if be.Restarting {
		fmt.Fprintf(&b, "  %s\n", styleHint.Render("restart pending"))
	}
	return b.String()
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

func runQuit(cmd *cobra.Command, args []string) error {
	return withShell(func(ctx context.Context, client *server.ShellServiceClient) error {
		if err := client.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to request shutdown: %w", err)
		}
		fmt.Println(styleSuccess.Render("Shutdown requested."))
		return nil
	})
}
