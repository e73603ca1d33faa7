package models

import "time"

// ShellInfo describes the running shell instance.
// This corresponds to ~/.nexrift/shell.yaml.
type ShellInfo struct {
	Version      int       `yaml:"version"`
	Host         string    `yaml:"host"`
	Port         int       `yaml:"port"`
	PID          int       `yaml:"pid"`
	StartedAt    time.Time `yaml:"started_at"`
	BuildVersion string    `yaml:"build_version"`
	Dev          bool      `yaml:"dev"`
}

// NewShellInfo creates a new shell info with current values.
func NewShellInfo(host string, port, pid int, buildVersion string, dev bool) *ShellInfo {
	return &ShellInfo{
		Version:      1,
		Host:         host,
		Port:         port,
		PID:          pid,
		StartedAt:    time.Now().UTC(),
		BuildVersion: buildVersion,
		Dev:          dev,
	}
}
