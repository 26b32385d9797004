package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 250 * time.Millisecond
)

// ErrBusy is returned when the lock could not be taken before the context ended.
var ErrBusy = errors.New("lock is held by another process")

// Lock is a held file lock.
type Lock struct {
	// file is the open lock file handle.
	file *os.File
	// path is the lock file location.
	path string
}

// Acquire takes an exclusive lock on path, creating the file and its parent.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := initialBackoff

	for {
		if err = tryLock(file); err == nil {
			return &Lock{file: file, path: path}, nil
		}

		timer := time.NewTimer(backoff)

		select {
		case <-ctx.Done():
			timer.Stop()
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s: %w", ErrBusy, path, ctx.Err())
		case <-timer.C:
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(unlockErr, closeErr)
}
