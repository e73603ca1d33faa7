package window

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// dialogs shows native dialogs attached to the window.
type dialogs struct {
	ctx context.Context
}

func (d dialogs) ShowError(title, message string) (string, error) {
	return runtime.MessageDialog(d.ctx, runtime.MessageDialogOptions{
		Type:          runtime.ErrorDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"OK"},
		DefaultButton: "OK",
	})
}

// SelectDirectory treats an empty result as cancellation; the picker never
// returns an empty path for a real selection.
func (d dialogs) SelectDirectory(title string) (string, bool, error) {
	path, err := runtime.OpenDirectoryDialog(d.ctx, runtime.OpenDialogOptions{
		Title:                title,
		CanCreateDirectories: true,
	})
	if err != nil {
		return "", false, err
	}
	return path, path != "", nil
}

// notifier forwards push events to the page as runtime events.
type notifier struct {
	ctx context.Context
}

func (n notifier) Emit(event string, payload any) {
	runtime.EventsEmit(n.ctx, event, payload)
}
