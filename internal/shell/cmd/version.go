package cmd

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bongobongo2020/nexrift/internal/buildinfo"
)

// Styles for shell version output (matching nexriftctl styles).
var (
	sStyleBrand   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "30", Dark: "45"})
	sStyleVersion = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "40"})
	sStyleLabel   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
	sStyleValue   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "15"})
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("  %s %s\n",
			sStyleBrand.Render("nexrift"),
			sStyleVersion.Render(buildinfo.Version),
		)
		fmt.Printf("    %s  %s\n", sStyleLabel.Render("Commit"), sStyleValue.Render(buildinfo.CommitHash))
		fmt.Printf("    %s   %s\n", sStyleLabel.Render("Built"), sStyleValue.Render(buildinfo.BuildDate))
		fmt.Printf("    %s %s\n", sStyleLabel.Render("OS/Arch"), sStyleValue.Render(runtime.GOOS+"/"+runtime.GOARCH))
		fmt.Printf("    %s      %s\n", sStyleLabel.Render("Go"), sStyleValue.Render(runtime.Version()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
