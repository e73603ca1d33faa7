package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// ScriptName is the backend entry point.
	ScriptName = "app_manager.py"

	// PythonEnv overrides the interpreter used to run the backend.
	PythonEnv = "NEXRIFT_PYTHON"
)

// Locator resolves the interpreter and script for the backend.
type Locator struct {
	// AppDir is the directory holding the shell executable.
	AppDir string
	// ResourcesDir holds bundled resources. Defaults to ResourcesDir(AppDir).
	ResourcesDir string
	// Dev selects the development layout only.
	Dev bool

	// Overridable for tests.
	Getenv   func(string) string
	LookPath func(string) (string, error)
	Exists   func(string) bool
}

// ResourcesDir returns where an installed bundle keeps its resources.
func ResourcesDir(appDir string) string {
	if runtime.GOOS == "darwin" {
		// NexRift.app/Contents/MacOS/nexrift -> NexRift.app/Contents/Resources
		return filepath.Join(appDir, "..", "Resources")
	}
	return filepath.Join(appDir, "resources")
}

// DevScript is the script path used in development, and the fallback when no
// candidate exists.
func (l Locator) DevScript() string {
	return filepath.Join(l.AppDir, "..", ScriptName)
}

// Candidates lists the script locations probed in order.
func (l Locator) Candidates() []string {
	if l.Dev {
		return []string{l.DevScript()}
	}
	res := l.ResourcesDir
	if res == "" {
		res = ResourcesDir(l.AppDir)
	}
	return []string{
		filepath.Join(res, "backend", ScriptName),
		l.DevScript(),
	}
}

// Script returns the first candidate that exists, or the development path.
func (l Locator) Script() string {
	exists := l.Exists
	if exists == nil {
		exists = fileExists
	}
	for _, c := range l.Candidates() {
		if exists(c) {
			return filepath.Clean(c)
		}
	}
	return filepath.Clean(l.DevScript())
}

// Interpreter returns the Python executable: $NEXRIFT_PYTHON, then python3 or
// python from PATH, then plain "python" and let the spawn fail if it's absent.
func (l Locator) Interpreter() string {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := getenv(PythonEnv); p != "" {
		return p
	}
	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := lookPath(name); err == nil {
			return p
		}
	}
	return "python"
}

// Command resolves the full backend command.
func (l Locator) Command() Command {
	script := l.Script()
	return Command{
		Interpreter: l.Interpreter(),
		Script:      script,
		Dir:         filepath.Dir(script),
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
