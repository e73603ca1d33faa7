//go:build !darwin

package tray

import "github.com/getlantern/systray"

// Supported reports whether the tray can run next to the window.
func Supported() bool {
	return true
}

func register(onReady, onExit func()) bool {
	systray.Register(onReady, onExit)
	return true
}
