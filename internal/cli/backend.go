package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bongobongo2020/nexrift/internal/shell/server"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Manage the Python backend",
}

var backendStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the backend",
	RunE: backendAction("start", func(ctx context.Context, c *server.ShellServiceClient) (*server.BackendStatus, error) {
		return c.StartBackend(ctx)
	}),
}

var backendStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the backend",
	RunE: backendAction("stop", func(ctx context.Context, c *server.ShellServiceClient) (*server.BackendStatus, error) {
		return c.StopBackend(ctx)
	}),
}

var backendRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the backend",
	RunE: backendAction("restart", func(ctx context.Context, c *server.ShellServiceClient) (*server.BackendStatus, error) {
		return c.RestartBackend(ctx)
	}),
}

var backendWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream backend output and lifecycle events",
	RunE:  runBackendWatch,
}

func init() {
	backendCmd.AddCommand(backendRestartCmd)
	backendCmd.AddCommand(backendStartCmd)
	backendCmd.AddCommand(backendStopCmd)
	backendCmd.AddCommand(backendWatchCmd)
}

func backendAction(verb string, call func(context.Context, *server.ShellServiceClient) (*server.BackendStatus, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withShell(func(ctx context.Context, client *server.ShellServiceClient) error {
			st, err := call(ctx, client)
			if err != nil {
				return fmt.Errorf("failed to %s backend: %w", verb, err)
			}
			line := "Backend " + stateBadge(string(st.State))
			if st.PID != 0 {
				line += styleHint.Render(fmt.Sprintf(" (PID %d)", st.PID))
			}
			if st.Restarting {
				line += styleHint.Render(", restart pending")
			}
			fmt.Println(line)
			return nil
		})
	}
}

func runBackendWatch(cmd *cobra.Command, args []string) error {
	conn, err := connectShell()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stream, err := server.NewShellServiceClient(conn).WatchBackend(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch backend: %w", err)
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch ended: %w", err)
		}
		if line := formatEvent(ev); line != "" {
			fmt.Println(line)
		}
	}
}

func formatEvent(ev *server.BackendEvent) string {
	ts := styleHint.Render(ev.Time.Local().Format("15:04:05"))
	switch ev.Kind {
	case supervisor.EventOutput:
		if ev.Stream == supervisor.Stderr {
			return fmt.Sprintf("%s %s", ts, styleWarning.Render(ev.Line))
		}
		return fmt.Sprintf("%s %s", ts, ev.Line)
	case supervisor.EventState:
		return fmt.Sprintf("%s %s %s", ts, styleLabel.Render("backend"), stateBadge(string(ev.To)))
	case supervisor.EventError:
		return fmt.Sprintf("%s %s", ts, styleError.Render(ev.Message))
	default:
		return ""
	}
}
