package cachestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

const (
	// CacheLockName guards writes to the cache directory, including the run log.
	CacheLockName = "zc-cache.lock"
	// RunLockName is held for the whole of an auto-cache run.
	RunLockName = "zc-auto-cache.lock"

	defaultLockTimeout = 30 * time.Second
	lockPollInterval   = 25 * time.Millisecond
)

// ErrLockTimeout is returned when a lock could not be taken within the timeout.
var ErrLockTimeout = errors.New("timed out waiting for cache lock")

// FileLock is an advisory flock(2) lock on a file.
type FileLock struct {
	path    string
	timeout time.Duration
}

// NewFileLock returns a lock on path. A non-positive timeout means 30s.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &FileLock{path: path, timeout: timeout}
}

// Path is the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire polls for an exclusive lock until it is granted, the timeout passes,
// or ctx is done.
func (l *FileLock) Acquire(ctx context.Context) (warmer.Releaser, error) {
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		held, ok, err := l.TryAcquire()
		if err != nil {
			return nil, err
		}
		if ok {
			return held, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", l.path, ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("acquire %s: %w", l.path, ErrLockTimeout)
		case <-ticker.C:
		}
	}
}

// TryAcquire takes the lock without waiting. ok is false when it is held elsewhere.
func (l *FileLock) TryAcquire() (warmer.Releaser, bool, error) {
	// #nosec G304 -- lock files live in the configured cache directory.
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock %s: %w", l.path, err)
	}
	return &heldLock{file: f}, true, nil
}

type heldLock struct {
	file *os.File
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (h *heldLock) Release() error {
	if h.file == nil {
		return nil
	}
	f := h.file
	h.file = nil
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return f.Close()
}
