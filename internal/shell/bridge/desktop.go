package bridge

import (
	"github.com/pkg/browser"

	"github.com/bongobongo2020/nexrift/internal/logging"
)

// DesktopShell opens paths and URLs with the platform's default handler.
type DesktopShell struct{}

// OpenPath implements Shell.
func (DesktopShell) OpenPath(path string) error {
	return browser.OpenFile(path)
}

// OpenURL implements Shell.
func (DesktopShell) OpenURL(url string) error {
	return browser.OpenURL(url)
}

// HeadlessDialogs stands in when there is no window: errors go to the log
// and the folder picker always reports a cancellation.
type HeadlessDialogs struct {
	Logger *logging.Logger
}

// ShowError implements Dialogs.
func (d HeadlessDialogs) ShowError(title, message string) (string, error) {
	if d.Logger != nil {
		d.Logger.Error().Str("title", title).Msg(message)
	}
	return "OK", nil
}

// SelectDirectory implements Dialogs.
func (HeadlessDialogs) SelectDirectory(string) (string, bool, error) {
	return "", false, nil
}
