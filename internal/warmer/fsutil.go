package warmer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckCacheDir reports why dir cannot hold the run log, or nil when it can.
func CheckCacheDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cache directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache directory %s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", dir, err)
	}
	return nil
}

// existsUnwritable returns an error when path exists and cannot be written.
func existsUnwritable(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		return &LogWriteError{Path: path, Err: err}
	}
	return nil
}
