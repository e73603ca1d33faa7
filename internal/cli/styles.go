package cli

import "github.com/charmbracelet/lipgloss"

// Adaptive colors matching the dashboard palette.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

// Semantic styles for CLI output.
var (
	styleBrand   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleVersion = lipgloss.NewStyle().Foreground(colorGreen)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
)

// Backend state badge styles.
var (
	badgeStopped  = lipgloss.NewStyle().Foreground(colorDim)
	badgeRunning  = lipgloss.NewStyle().Foreground(colorGreen)
	badgeStopping = lipgloss.NewStyle().Foreground(colorYellow)
)

// stateBadge renders a backend state.
func stateBadge(state string) string {
	switch state {
	case "running":
		return badgeRunning.Render("● running")
	case "stopping":
		return badgeStopping.Render("◐ stopping")
	default:
		return badgeStopped.Render("○ " + state)
	}
}

// statusBadge renders a backend session log status.
func statusBadge(status string) string {
	switch status {
	case "crashed":
		return styleError.Render(status)
	case "exited":
		return styleSuccess.Render(status)
	default:
		return styleHint.Render(status)
	}
}
