// Package config handles configuration loading, saving, and path management.
package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalDirName is the name of the global NexRift directory.
	GlobalDirName = ".nexrift"

	// HomeEnv overrides the location of the global directory.
	HomeEnv = "NEXRIFT_HOME"

	// LogsDirName is the name of the logs directory.
	LogsDirName = "logs"
)

// File names
const (
	ShellFileName    = "shell.yaml"
	LockFileName     = "shell.lock"
	SettingsFileName = "settings.yaml"
)

// GlobalDir returns the path to the global NexRift directory (~/.nexrift/).
func GlobalDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalDirName), nil
}

func globalFile(name string) (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// GlobalShellFile returns the path to the shell.yaml file.
func GlobalShellFile() (string, error) {
	return globalFile(ShellFileName)
}

// GlobalLockFile returns the path to the single-instance lock file.
func GlobalLockFile() (string, error) {
	return globalFile(LockFileName)
}

// GlobalSettingsFile returns the path to the settings.yaml file.
func GlobalSettingsFile() (string, error) {
	return globalFile(SettingsFileName)
}

// GlobalLogsDir returns the path to the logs directory.
func GlobalLogsDir() (string, error) {
	return globalFile(LogsDirName)
}

// AppDir returns the directory holding the running executable, with
// symlinks resolved.
func AppDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// EnsureGlobalDir creates the global NexRift directory if it doesn't exist.
func EnsureGlobalDir() error {
	dir, err := GlobalDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// EnsureGlobalLogsDir creates the global logs directory if it doesn't exist.
func EnsureGlobalLogsDir() error {
	dir, err := GlobalLogsDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
