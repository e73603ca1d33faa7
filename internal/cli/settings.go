package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
	"github.com/bongobongo2020/nexrift/internal/shell/server"
)

var settingsYAML bool

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"config"},
	Short:   "Read or replace the settings document",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the settings document",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <file|->",
	Short: "Replace the settings document",
	Long: `Replace the whole settings document with the contents of a JSON or YAML
file. Use - to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsSet,
}

var settingsServersCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the configured backend servers",
	Long: `List the servers from the settings file. This reads the file directly and
works whether or not NexRift is running.`,
	Args: cobra.NoArgs,
	RunE: runSettingsServers,
}

func init() {
	settingsGetCmd.Flags().BoolVar(&settingsYAML, "yaml", false, "Print as YAML instead of JSON")
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsServersCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	return withBridge(func(ctx context.Context, client *server.BridgeServiceClient) error {
		resp, err := client.Invoke(ctx, &server.InvokeRequest{Channel: bridge.ChannelGetSettings})
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		out, err := formatSettings(resp.Result, settingsYAML)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}

func formatSettings(raw json.RawMessage, asYAML bool) (string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("invalid settings: %w", err)
	}
	if asYAML {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	data, err := readSettingsInput(args[0], os.Stdin)
	if err != nil {
		return err
	}
	doc, err := parseSettings(data)
	if err != nil {
		return err
	}

	return withBridge(func(ctx context.Context, client *server.BridgeServiceClient) error {
		_, err := client.Invoke(ctx, &server.InvokeRequest{
			Channel: bridge.ChannelSaveSettings,
			Args:    []json.RawMessage{doc},
		})
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Println(styleSuccess.Render("Settings saved."))
		return nil
	})
}

func readSettingsInput(path string, stdin *os.File) ([]byte, error) {
	if path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		return data, nil
	}
	if term.IsTerminal(int(stdin.Fd())) {
		return nil, fmt.Errorf("refusing to read settings from a terminal; pipe a file into 'nexriftctl settings set -'")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings from stdin: %w", err)
	}
	return data, nil
}

// parseSettings accepts JSON or YAML and returns the document as JSON. The
// document must be a mapping.
func parseSettings(data []byte) (json.RawMessage, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("settings document is empty")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("settings must use string keys: %w", err)
	}
	return out, nil
}

func runSettingsServers(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	fmt.Print(renderServers(settings))
	return nil
}

func renderServers(s *models.Settings) string {
	if len(s.Servers) == 0 {
		return styleHint.Render("No servers configured.") + "\n"
	}

	var b strings.Builder
	for _, srv := range s.Servers {
		marker := "  "
		if srv.ID == s.ActiveServerID {
			marker = styleSuccess.Render("* ")
		}
		flags := ""
		if srv.AutoConnect {
			flags = styleHint.Render(" auto-connect")
		}
		fmt.Fprintf(&b, "%s%s %s %s%s\n",
			marker,
			styleValue.Render(srv.Name),
			styleLabel.Render("("+srv.ID+")"),
			srv.Address,
			flags,
		)
	}
	return b.String()
}
