//go:build windows

package supervisor

import "os"

// No SIGTERM on Windows; the child is killed outright.
func terminate(p *os.Process) error {
	return p.Kill()
}
