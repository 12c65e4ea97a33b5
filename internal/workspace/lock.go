package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file held under the workspace root while a cycle runs.
const LockFileName = ".autotrain.lock"

// ErrLocked is returned by TryLock when another process holds the workspace.
var ErrLocked = errors.New("cycle already running")

// Lock is an exclusive advisory lock on a workspace root.
type Lock struct {
	fl *flock.Flock
}

// TryLock takes the workspace lock without blocking.
func TryLock(root string) (*Lock, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	fl := flock.New(filepath.Join(root, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock. Safe on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
