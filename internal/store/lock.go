package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// DirLock is a cross-process writer lock on a persistence directory,
// held in <dir>/.pdfrag.lock.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates the lock for dir without acquiring it.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFile)
	return &DirLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. A lock held by another
// writer is reported as ERR_204_INDEX_LOCKED.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.PersistenceError("failed to create index directory", err).
			WithDetail("dir", filepath.Dir(l.path))
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return errors.PersistenceError("failed to acquire index lock", err).
			WithDetail("lock", l.path)
	}
	if !acquired {
		return errors.New(errors.ErrCodeIndexLocked,
			fmt.Sprintf("index directory %s is being written by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("Wait for the other pdfrag process to finish, or choose another --persist-dir")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked DirLock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release index lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}
