// Package passlock keeps two passes from running at the same time.
package passlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked is returned when another process holds the lock
var ErrLocked = errors.New("pass already in progress")

// Lock is an acquired advisory lock on a file
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking. The file is created if
// needed and holds the pid of the owner.
func Acquire(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("passlock: creating %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("passlock: opening %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("passlock: locking %s: %w", path, err)
	}

	// Owner pid is informational only
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. The file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}
