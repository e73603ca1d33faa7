package bridge

import (
	"encoding/json"
	"fmt"
)

// Invoke channels.
const (
	ChannelGetAppPath      = "get-app-path"
	ChannelShowErrorDialog = "show-error-dialog"
	ChannelOpenFolder      = "open-folder"
	ChannelSelectFolder    = "select-folder"
	ChannelGetSettings     = "get-settings"
	ChannelSaveSettings    = "save-settings"
)

// Push events.
const (
	EventBackendError     = "backend-error"
	EventSettingsChanged  = "settings-changed"
	EventDashboardChanged = "dashboard-changed"
)

// Channels returns the invoke channels in a stable order.
func Channels() []string {
	return []string{
		ChannelGetAppPath,
		ChannelShowErrorDialog,
		ChannelOpenFolder,
		ChannelSelectFolder,
		ChannelGetSettings,
		ChannelSaveSettings,
	}
}

// Invoke dispatches a call by channel name. args holds the positional
// arguments, each JSON encoded. Missing arguments decode as zero values.
func (g *Gateway) Invoke(channel string, args []json.RawMessage) (any, error) {
	switch channel {
	case ChannelGetAppPath:
		return g.AppPath()

	case ChannelShowErrorDialog:
		var title, message string
		if err := decodeArgs(args, &title, &message); err != nil {
			return nil, fmt.Errorf("%s: %w", channel, err)
		}
		return g.ShowErrorDialog(title, message)

	case ChannelOpenFolder:
		var path string
		if err := decodeArgs(args, &path); err != nil {
			return nil, fmt.Errorf("%s: %w", channel, err)
		}
		g.OpenFolder(path)
		return nil, nil

	case ChannelSelectFolder:
		return g.SelectFolder()

	case ChannelGetSettings:
		return g.GetSettings()

	case ChannelSaveSettings:
		var settings any
		if err := decodeArgs(args, &settings); err != nil {
			return nil, fmt.Errorf("%s: %w", channel, err)
		}
		return g.SaveSettings(settings)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
}

func decodeArgs(args []json.RawMessage, dst ...any) error {
	if len(args) > len(dst) {
		return fmt.Errorf("expected at most %d arguments, got %d", len(dst), len(args))
	}
	for i, raw := range args {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
