package models

// BackendLogEntry represents metadata for a single backend session log.
type BackendLogEntry struct {
	LogID       string `yaml:"log_id" json:"log_id"`
	Interpreter string `yaml:"interpreter" json:"interpreter"`
	Script      string `yaml:"script" json:"script"`
	PID         int    `yaml:"pid" json:"pid"`
	StartedAt   string `yaml:"started_at" json:"started_at"`
	EndedAt     string `yaml:"ended_at" json:"ended_at"`
	ExitCode    int    `yaml:"exit_code" json:"exit_code"`
	Status      string `yaml:"status" json:"status"` // "exited" | "crashed" | "stopped" | "failed"
	Lines       int    `yaml:"lines" json:"lines"`
}
