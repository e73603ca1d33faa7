// Package tray implements the system tray icon and menu for the shell.
package tray

// ShellState provides the tray with the shell's state and actions.
type ShellState interface {
	Port() int
	BackendState() string
	// HasWindow reports whether there is a window to show.
	HasWindow() bool
	ToggleWindow()
	OpenDashboard()
	RestartBackend()
	RequestShutdown()
}
