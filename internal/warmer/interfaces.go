package warmer

import (
	"context"
	"time"
)

// CacheStore resolves where the page cache keeps the artifact for a URL.
type CacheStore interface {
	// BuildCachePath returns the artifact path for rawURL, relative to the cache dir.
	BuildCachePath(rawURL string) (string, error)
	// CacheDir joins elem onto the absolute cache directory.
	CacheDir(elem ...string) string
}

// Releaser gives back a held lock.
type Releaser interface {
	Release() error
}

// Locker acquires the lock shared with the cache writer.
type Locker interface {
	Acquire(ctx context.Context) (Releaser, error)
}

// TryLocker acquires a lock without waiting; it reports false if someone else holds it.
type TryLocker interface {
	TryAcquire() (Releaser, bool, error)
}

// Dispatcher submits a warming GET without waiting for the response. The
// returned error only describes the submission itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, rawURL string, userAgent string) error
}

// SiteRegistry lists the child sites of a multi-site install.
type SiteRegistry interface {
	ListSites(ctx context.Context) ([]Site, error)
}

// SitemapSource resolves a sitemap URL into page URLs.
type SitemapSource interface {
	Collect(ctx context.Context, sitemapURL string) ([]string, error)
}

// Prober checks a single URL and warms it when stale.
type Prober interface {
	Probe(ctx context.Context, rawURL string) ProbeResult
}

// RunLog records attempts and run totals.
type RunLog interface {
	LogAttempt(ctx context.Context, rawURL string, dispatchErr error) error
	LogRunSummary(ctx context.Context, stats RunStats) error
}

// Pacer spaces out consecutive URLs.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Enumerator lists the sites a run visits.
type Enumerator interface {
	Enumerate(ctx context.Context) []Site
}
