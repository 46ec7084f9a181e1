package warmer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"
)

type fakeCache struct {
	root     string
	buildErr error
}

func (c *fakeCache) BuildCachePath(rawURL string) (string, error) {
	if c.buildErr != nil {
		return "", c.buildErr
	}
	// Good enough for tests: the last path segment names the entry.
	return filepath.Join("pages", filepath.Base(rawURL), "index.html"), nil
}

func (c *fakeCache) CacheDir(elem ...string) string {
	return filepath.Join(append([]string{c.root}, elem...)...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeReleaser struct {
	onRelease func()
}

func (r fakeReleaser) Release() error {
	if r.onRelease != nil {
		r.onRelease()
	}
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(_ context.Context) (Releaser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return fakeReleaser{onRelease: func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}}, nil
}

type fakeTryLocker struct {
	held     bool
	err      error
	released bool
}

func (l *fakeTryLocker) TryAcquire() (Releaser, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return fakeReleaser{onRelease: func() { l.released = true }}, true, nil
}

type dispatchCall struct {
	url       string
	userAgent string
}

type fakeDispatcher struct {
	err   error
	calls []dispatchCall
}

func (d *fakeDispatcher) Dispatch(_ context.Context, rawURL, userAgent string) error {
	d.calls = append(d.calls, dispatchCall{url: rawURL, userAgent: userAgent})
	return d.err
}

type attempt struct {
	url string
	err error
}

type fakeRunLog struct {
	attemptErr error
	summaryErr error
	attempts   []attempt
	summaries  []RunStats
}

func (l *fakeRunLog) LogAttempt(_ context.Context, rawURL string, dispatchErr error) error {
	l.attempts = append(l.attempts, attempt{url: rawURL, err: dispatchErr})
	return l.attemptErr
}

func (l *fakeRunLog) LogRunSummary(_ context.Context, stats RunStats) error {
	l.summaries = append(l.summaries, stats)
	return l.summaryErr
}

type fakeEnumerator struct {
	sites []Site
}

func (e *fakeEnumerator) Enumerate(_ context.Context) []Site {
	return append([]Site(nil), e.sites...)
}

type fakeSitemaps struct {
	results   map[string][]string
	errs      map[string]error
	onCollect func(ctx context.Context, sitemapURL string)
	calls     []string
}

func (s *fakeSitemaps) Collect(ctx context.Context, sitemapURL string) ([]string, error) {
	s.calls = append(s.calls, sitemapURL)
	if s.onCollect != nil {
		s.onCollect(ctx, sitemapURL)
	}
	if err, ok := s.errs[sitemapURL]; ok {
		return nil, err
	}
	return s.results[sitemapURL], nil
}

type fakeProber struct {
	outcome ProbeOutcome
	logErr  error
	onProbe func(url string)
	urls    []string
}

func (p *fakeProber) Probe(_ context.Context, rawURL string) ProbeResult {
	p.urls = append(p.urls, rawURL)
	if p.onProbe != nil {
		p.onProbe(rawURL)
	}
	outcome := p.outcome
	if outcome == "" {
		outcome = OutcomeFresh
	}
	return ProbeResult{Outcome: outcome, LogErr: p.logErr}
}

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(_ context.Context) error {
	p.waits++
	return p.err
}

type fixedIDs struct {
	id  string
	err error
}

func (g fixedIDs) NewID() (string, error) {
	return g.id, g.err
}

var errBoom = errors.New("boom")
