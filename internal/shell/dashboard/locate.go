// Package dashboard finds and serves the dashboard UI and decides which URLs
// the shell's window may navigate to.
package dashboard

import (
	"os"
	"path/filepath"
)

// FileName is the dashboard's entry page.
const FileName = "dashboard.html"

// Location is the outcome of searching for the dashboard.
type Location struct {
	// Path is the dashboard file, empty when none was found.
	Path string
	// Expected is the primary location, named on the diagnostic page.
	Expected string
	// Tried lists every candidate in probe order.
	Tried []string
}

// Found reports whether a dashboard file exists.
func (l Location) Found() bool {
	return l.Path != ""
}

// Dir returns the directory holding the dashboard, or "".
func (l Location) Dir() string {
	if l.Path == "" {
		return ""
	}
	return filepath.Dir(l.Path)
}

// Candidates lists where the dashboard may live, in probe order.
func Candidates(appDir, cwd string) []string {
	return []string{
		filepath.Join(appDir, "..", "dashboard", FileName),
		filepath.Join(cwd, "dashboard", FileName),
		filepath.Join(appDir, "..", "..", "dashboard", FileName),
		filepath.Join(appDir, "dashboard", FileName),
		filepath.Join(cwd, FileName),
	}
}

// Locate returns the first candidate that exists.
func Locate(appDir, cwd string) Location {
	tried := Candidates(appDir, cwd)
	loc := Location{Expected: tried[0], Tried: tried}
	for _, c := range tried {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			loc.Path = c
			break
		}
	}
	return loc
}
