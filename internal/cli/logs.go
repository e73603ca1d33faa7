package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/server"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show captured backend output",
}

var logsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List backend session logs, newest first",
	Args:    cobra.NoArgs,
	RunE:    runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show <log-id>",
	Short: "Print one backend session log",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogsShow,
}

func init() {
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsShowCmd)
}

func runLogsList(cmd *cobra.Command, args []string) error {
	return withShell(func(ctx context.Context, client *server.ShellServiceClient) error {
		list, err := client.ListLogs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list logs: %w", err)
		}
		fmt.Print(renderLogList(list.Logs))
		return nil
	})
}

func renderLogList(logs []*models.BackendLogEntry) string {
	if len(logs) == 0 {
		return styleHint.Render("No backend logs yet.") + "\n"
	}
	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s  %s  %s\n",
			styleValue.Render(l.LogID),
			statusBadge(l.Status),
			styleHint.Render(fmt.Sprintf("exit %d, %d lines", l.ExitCode, l.Lines)),
		)
	}
	return b.String()
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	return withShell(func(ctx context.Context, client *server.ShellServiceClient) error {
		content, err := client.GetLog(ctx, &server.LogRequest{LogID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to read log: %w", err)
		}
		if e := content.Entry; e != nil {
			fmt.Printf("%s %s\n", styleBrand.Render(e.LogID), statusBadge(e.Status))
			fmt.Printf("  %s %s %s\n", styleLabel.Render("Command"), styleValue.Render(e.Interpreter), styleValue.Render(e.Script))
			fmt.Printf("  %s %s .. %s\n", styleLabel.Render("Ran    "), e.StartedAt, e.EndedAt)
			fmt.Printf("  %s %d\n\n", styleLabel.Render("Exit   "), e.ExitCode)
		}
		fmt.Print(content.Content)
		return nil
	})
}
