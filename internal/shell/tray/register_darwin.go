package tray

// Supported reports whether the tray can run next to the window. On macOS
// the window toolkit owns the application's menu bar and status items.
func Supported() bool {
	return false
}

func register(onReady, onExit func()) bool {
	return false
}
