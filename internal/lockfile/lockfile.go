// Package lockfile serializes disk syncs across processes with an
// advisory flock on a per-project lock file. The lock guards the sync
// window only; staged overlay state is process-local and needs none.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrBusy is returned when another process holds the lock.
var ErrBusy = fmt.Errorf("lock held by another process")

// Lock is a held advisory file lock.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive non-blocking flock on path, creating the
// file and its parent directory as needed. Returns ErrBusy when another
// process already holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%s: %w", path, ErrBusy)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. Safe to call once; the file itself stays on
// disk for the next holder.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}
