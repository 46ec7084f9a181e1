package warmer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/clock/system"
	"github.com/JakeFAU/autocache-warmer/internal/metrics"
)

// RunnerDeps are the collaborators of a Runner. RunLock, Pacer, Clock, IDs and
// Shuffle are optional.
type RunnerDeps struct {
	Sites    Enumerator
	Sitemaps SitemapSource
	Prober   Prober
	RunLog   RunLog
	Cache    CacheStore
	RunLock  TryLocker
	Pacer    Pacer
	Clock    Clock
	IDs      IDGenerator
	Shuffle  func(n int, swap func(i, j int))
}

// Runner executes bounded auto-cache runs.
type Runner struct {
	opts   Options
	deps   RunnerDeps
	logger *zap.Logger
}

// NewRunner validates deps and fills in defaults.
func NewRunner(opts Options, deps RunnerDeps, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Sites == nil:
		return nil, errors.New("site enumerator is required")
	case deps.Sitemaps == nil:
		return nil, errors.New("sitemap source is required")
	case deps.Prober == nil:
		return nil, errors.New("prober is required")
	case deps.RunLog == nil:
		return nil, errors.New("run log is required")
	case deps.Cache == nil:
		return nil, errors.New("cache store is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Shuffle == nil {
		deps.Shuffle = rand.Shuffle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{opts: opts, deps: deps, logger: logger}, nil
}

// Run performs one auto-cache run. It never fails: unmet preconditions yield
// stats with Skipped set and nothing written to the run log, and per-URL
// problems are logged and counted.
func (r *Runner) Run(ctx context.Context) RunStats {
	stats := RunStats{RunID: r.newRunID()}
	logger := r.logger.With(zap.String("run_id", stats.RunID))

	if reason := r.precondition(); reason != "" {
		return r.skip(stats, reason, logger)
	}
	if r.deps.RunLock != nil {
		held, ok, err := r.deps.RunLock.TryAcquire()
		switch {
		case err != nil:
			return r.skip(stats, fmt.Sprintf("run lock unavailable: %v", err), logger)
		case !ok:
			return r.skip(stats, "another run is in progress", logger)
		}
		defer func() {
			if err := held.Release(); err != nil {
				logger.Warn("release run lock failed", zap.Error(err))
			}
		}()
	}

	start := r.deps.Clock.Now()
	stats.Started = start
	stopAfter := r.opts.StopAfter()
	logger.Info("auto-cache run started", zap.Duration("max_time", r.opts.MaxTime()))

	sites := r.deps.Sites.Enumerate(ctx)
	r.deps.Shuffle(len(sites), func(i, j int) { sites[i], sites[j] = sites[j], sites[i] })

	overBudget := func() bool {
		if r.deps.Clock.Now().Sub(start) <= stopAfter {
			return false
		}
		stats.DeadlineHit = true
		logger.Info("auto-cache time budget spent", zap.Int("total_urls", stats.TotalURLs))
		return true
	}

siteLoop:
	for _, site := range sites {
		if overBudget() {
			break
		}
		remaining := stopAfter - r.deps.Clock.Now().Sub(start)
		for _, rawURL := range r.siteURLs(ctx, remaining, site, &stats, logger) {
			if overBudget() {
				break siteLoop
			}
			if err := r.pace(ctx); err != nil {
				logger.Info("auto-cache run interrupted", zap.Error(err))
				break siteLoop
			}
			res := r.deps.Prober.Probe(ctx, rawURL)
			stats.TotalURLs++
			metrics.ObserveURL(string(res.Outcome))
			if res.Outcome == OutcomeDispatched {
				stats.Dispatched++
			}
			if res.LogErr != nil {
				r.reportLogError(&stats, res.LogErr, logger)
			}
		}
	}

	stats.Elapsed = r.deps.Clock.Now().Sub(start)
	if err := r.deps.RunLog.LogRunSummary(context.WithoutCancel(ctx), stats); err != nil {
		r.reportLogError(&stats, err, logger)
	}
	metrics.ObserveRun("completed", stats.Elapsed)
	logger.Info("auto-cache run completed",
		zap.Int("total_urls", stats.TotalURLs),
		zap.Int("dispatched", stats.Dispatched),
		zap.Float64("elapsed_seconds", stats.ElapsedSeconds()),
		zap.Int("sitemap_errors", len(stats.SitemapErrors)),
	)
	return stats
}

func (r *Runner) precondition() string {
	switch {
	case !r.opts.Enabled:
		return "caching is disabled"
	case !r.opts.AutoCacheEnabled:
		return "auto-cache is disabled"
	case strings.TrimSpace(r.opts.SitemapPath) == "" && len(r.opts.OtherURLs) == 0:
		return "no sitemap or other URLs configured"
	}
	if err := CheckCacheDir(r.deps.Cache.CacheDir()); err != nil {
		return err.Error()
	}
	return ""
}

func (r *Runner) skip(stats RunStats, reason string, logger *zap.Logger) RunStats {
	stats.Skipped = reason
	metrics.ObserveRun("skipped", 0)
	logger.Debug("auto-cache run skipped", zap.String("reason", reason))
	return stats
}

// siteURLs merges the site's sitemap and explicit URLs into a shuffled,
// duplicate-free list. An invalid sitemap only drops the sitemap part.
// Sitemap collection, nested indexes included, is cut off once the remaining
// budget is spent.
func (r *Runner) siteURLs(
	ctx context.Context,
	remaining time.Duration,
	site Site,
	stats *RunStats,
	logger *zap.Logger,
) []string {
	var fromSitemap []string
	if sitemapURL := site.SitemapURL(r.opts.Scheme, r.opts.SitemapPath); sitemapURL != "" {
		collectCtx, cancel := context.WithTimeout(ctx, remaining)
		urls, err := r.deps.Sitemaps.Collect(collectCtx, sitemapURL)
		cancel()
		if err != nil {
			stats.SitemapErrors = append(stats.SitemapErrors, err.Error())
			logger.Error("invalid sitemap; warming explicit URLs only",
				zap.String("site", site.Domain),
				zap.String("sitemap", sitemapURL),
				zap.Error(err),
			)
		}
		fromSitemap = urls
	}
	urls := MergeURLs(fromSitemap, site.ExtraURLs)
	r.deps.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
	return urls
}

func (r *Runner) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.deps.Pacer == nil {
		return nil
	}
	return r.deps.Pacer.Wait(ctx)
}

func (r *Runner) reportLogError(stats *RunStats, err error, logger *zap.Logger) {
	stats.LogErrors = append(stats.LogErrors, err.Error())
	metrics.ObserveLogWriteError()
	var writeErr *LogWriteError
	if errors.As(err, &writeErr) {
		logger.Error("auto-cache log is not writable; fix its permissions", zap.String("path", writeErr.Path), zap.Error(err))
		return
	}
	logger.Error("auto-cache log write failed", zap.Error(err))
}

func (r *Runner) newRunID() string {
	if r.deps.IDs == nil {
		return ""
	}
	id, err := r.deps.IDs.NewID()
	if err != nil {
		r.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// MergeURLs concatenates lists and drops repeats, keeping first occurrences.
func MergeURLs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
