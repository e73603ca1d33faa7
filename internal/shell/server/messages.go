package server

import (
	"encoding/json"
	"time"

	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

// ShellStatus describes the running shell.
type ShellStatus struct {
	Version   string            `json:"version"`
	PID       int               `json:"pid"`
	Host      string            `json:"host"`
	Port      int               `json:"port"`
	Dev       bool              `json:"dev"`
	StartedAt time.Time         `json:"started_at"`
	Dashboard string            `json:"dashboard,omitempty"`
	Backend   supervisor.Status `json:"backend"`
}

// BackendStatus wraps the supervisor's status.
type BackendStatus = supervisor.Status

// BackendEvent is one event on the WatchBackend stream.
type BackendEvent = supervisor.Event

// LogList contains backend session log metadata.
type LogList struct {
	Logs []*models.BackendLogEntry `json:"logs"`
}

// LogRequest identifies a backend session log.
type LogRequest struct {
	LogID string `json:"log_id"`
}

// LogContent is a backend session log with its captured output.
type LogContent struct {
	Entry   *models.BackendLogEntry `json:"entry"`
	Content string                  `json:"content"`
}

// InvokeRequest calls a bridge channel with positional arguments.
type InvokeRequest struct {
	Channel string            `json:"channel"`
	Args    []json.RawMessage `json:"args,omitempty"`
}

// InvokeResponse carries the JSON encoded result of a bridge call.
type InvokeResponse struct {
	Result json.RawMessage `json:"result"`
}

// PushEvent is an event pushed from the shell to the dashboard.
type PushEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
