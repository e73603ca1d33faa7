package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/bongobongo2020/nexrift/internal/logging"
)

// Tooltip is shown when hovering the tray icon.
const Tooltip = "NexRift - Python App Manager"

// Tray is the shell's tray icon and menu. The platform allows one per
// process.
type Tray struct {
	state ShellState
	log   *logging.Logger

	mu          sync.Mutex
	ready       bool
	backendItem *systray.MenuItem
	portItem    *systray.MenuItem
	windowItem  *systray.MenuItem
	openItem    *systray.MenuItem
	restartItem *systray.MenuItem
	quitItem    *systray.MenuItem
}

// New creates a tray for state.
func New(state ShellState, logger *logging.Logger) *Tray {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Tray{state: state, log: logger}
}

// Register adds the tray icon alongside the window's event loop. It reports
// false on platforms where that is not supported.
func (t *Tray) Register() bool {
	return register(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconData)
	systray.SetTooltip(Tooltip)

	header := systray.AddMenuItem("NexRift", "")
	header.Disable()

	t.mu.Lock()
	t.backendItem = systray.AddMenuItem(formatBackend(t.state.BackendState()), "")
	t.backendItem.Disable()
	t.portItem = systray.AddMenuItem(formatPort(t.state.Port()), "")
	t.portItem.Disable()

	systray.AddSeparator()

	t.windowItem = systray.AddMenuItem("Show NexRift", "Show or hide the NexRift window")
	if !t.state.HasWindow() {
		t.windowItem.Hide()
	}
	t.openItem = systray.AddMenuItem("Open Dashboard in Browser", "Open the dashboard in the default browser")
	t.restartItem = systray.AddMenuItem("Restart Backend", "Restart the Python backend")

	systray.AddSeparator()

	t.quitItem = systray.AddMenuItem("Quit", "Stop the backend and quit NexRift")
	t.ready = true
	t.mu.Unlock()

	go t.handleClicks()
}

func (t *Tray) onExit() {
	t.log.Debug().Msg("Tray removed")
}

func (t *Tray) handleClicks() {
	for {
		select {
		case <-t.windowItem.ClickedCh:
			t.state.ToggleWindow()

		case <-t.openItem.ClickedCh:
			t.state.OpenDashboard()

		case <-t.restartItem.ClickedCh:
			t.log.Info().Msg("Restarting backend from tray")
			t.state.RestartBackend()

		case <-t.quitItem.ClickedCh:
			t.state.RequestShutdown()
			return
		}
	}
}

// UpdateBackend refreshes the backend status line. It is a no-op until the
// tray is ready.
func (t *Tray) UpdateBackend(backendState string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return
	}
	t.backendItem.SetTitle(formatBackend(backendState))
	systray.SetTooltip(formatTooltip(backendState))
}

func formatBackend(backendState string) string {
	return fmt.Sprintf("Backend: %s", backendState)
}

func formatPort(port int) string {
	if port <= 0 {
		return "Dashboard server not running"
	}
	return fmt.Sprintf("Dashboard on port: %d", port)
}

func formatTooltip(backendState string) string {
	if backendState == "" || backendState == "running" {
		return Tooltip
	}
	return fmt.Sprintf("%s (backend %s)", Tooltip, backendState)
}
