package config

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another shell holds the instance lock.
var ErrAlreadyRunning = errors.New("another NexRift instance is already running")

// InstanceLock is the single-instance lock held for the lifetime of the shell.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireInstanceLock takes the lock at ~/.nexrift/shell.lock without
// blocking. It returns ErrAlreadyRunning if the lock is held elsewhere.
func AcquireInstanceLock() (*InstanceLock, error) {
	if err := EnsureGlobalDir(); err != nil {
		return nil, err
	}
	path, err := GlobalLockFile()
	if err != nil {
		return nil, err
	}
	return acquireLock(path)
}

func acquireLock(path string) (*InstanceLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{fl: fl}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
