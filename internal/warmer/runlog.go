package warmer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/JakeFAU/autocache-warmer/internal/clock/system"
)

const (
	// LogFileName is the run log kept in the cache directory.
	LogFileName = "zc-auto-cache.log"
	// MaxLogSize is the size past which the run log is archived.
	MaxLogSize int64 = 2 << 20

	logTimeLayout = "Mon, 02 Jan 06 15:04:05 -0700"
)

// FileRunLog appends attempt and run entries to the run log under the cache
// lock and archives the file once it outgrows MaxLogSize.
type FileRunLog struct {
	cache   CacheStore
	lock    Locker
	clock   Clock
	maxSize int64
}

// NewFileRunLog builds a run log inside cache's directory. clock may be nil.
func NewFileRunLog(cache CacheStore, lock Locker, clock Clock) *FileRunLog {
	if clock == nil {
		clock = system.New()
	}
	return &FileRunLog{
		cache:   cache,
		lock:    lock,
		clock:   clock,
		maxSize: MaxLogSize,
	}
}

// Path is the absolute location of the active log file.
func (l *FileRunLog) Path() string {
	return l.cache.CacheDir(LogFileName)
}

// LogAttempt records one warming attempt and its dispatch error, if any.
func (l *FileRunLog) LogAttempt(ctx context.Context, rawURL string, dispatchErr error) error {
	return l.append(ctx, func(now time.Time) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Time: %s\n", now.Format(logTimeLayout))
		fmt.Fprintf(&b, "URL: %s\n", rawURL)
		if dispatchErr != nil {
			fmt.Fprintf(&b, "Error: %s\n", dispatchErr.Error())
		}
		b.WriteString("\n")
		return b.String()
	})
}

// LogRunSummary records the totals of a finished run.
func (l *FileRunLog) LogRunSummary(ctx context.Context, stats RunStats) error {
	return l.append(ctx, func(now time.Time) string {
		return fmt.Sprintf("Run Completed: %s\nTotal URLs: %d\nTotal Time: %.5f seconds\n\n",
			now.Format(logTimeLayout), stats.TotalURLs, stats.ElapsedSeconds())
	})
}

func (l *FileRunLog) append(ctx context.Context, compose func(now time.Time) string) (err error) {
	held, err := l.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() {
		if relErr := held.Release(); relErr != nil && err == nil {
			err = fmt.Errorf("release cache lock: %w", relErr)
		}
	}()

	path := l.Path()
	if err := existsUnwritable(path); err != nil {
		return err
	}
	now := l.clock.Now()
	// #nosec G302 G304 -- the log lives in the configured cache directory and is meant to be shared.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return &LogWriteError{Path: path, Err: err}
		}
		return fmt.Errorf("open run log: %w", err)
	}
	if _, err := f.WriteString(compose(now)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write run log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return l.rotate(path, now)
}

// rotate archives path once it exceeds maxSize so the next append starts fresh.
func (l *FileRunLog) rotate(path string, now time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat run log: %w", err)
	}
	if info.Size() <= l.maxSize {
		return nil
	}
	archived, err := l.archivePath(now)
	if err != nil {
		return err
	}
	if err := os.Rename(path, archived); err != nil {
		return fmt.Errorf("archive run log: %w", err)
	}
	return nil
}

// archivePath picks an archive name not yet taken, adding "-1", "-2", ... when
// several rotations fall in the same second.
func (l *FileRunLog) archivePath(now time.Time) (string, error) {
	base := strings.TrimSuffix(ArchivedLogName(now), ".log")
	for n := 0; ; n++ {
		name := base + ".log"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.log", base, n)
		}
		candidate := l.cache.CacheDir(name)
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat archived run log: %w", err)
		}
	}
}

// ArchivedLogName is the file name a log rotated at t is renamed to.
func ArchivedLogName(t time.Time) string {
	return fmt.Sprintf("%s-archived-%d.log", strings.TrimSuffix(LogFileName, ".log"), t.Unix())
}
