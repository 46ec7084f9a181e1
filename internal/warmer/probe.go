package warmer

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/clock/system"
)

// CacheProbe refreshes cache entries that already exist but have aged past
// the configured max age. URLs that were never cached are left to normal
// traffic.
type CacheProbe struct {
	opts       Options
	cache      CacheStore
	dispatcher Dispatcher
	runLog     RunLog
	clock      Clock
	logger     *zap.Logger
}

// NewCacheProbe wires a probe. clock and logger may be nil.
func NewCacheProbe(
	opts Options,
	cache CacheStore,
	dispatcher Dispatcher,
	runLog RunLog,
	clock Clock,
	logger *zap.Logger,
) *CacheProbe {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheProbe{
		opts:       opts,
		cache:      cache,
		dispatcher: dispatcher,
		runLog:     runLog,
		clock:      clock,
		logger:     logger,
	}
}

// Probe dispatches a warming request for rawURL when its cached artifact is stale.
func (p *CacheProbe) Probe(ctx context.Context, rawURL string) ProbeResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ProbeResult{Outcome: OutcomeSkipped}
	}
	if !p.opts.AllowQueryStrings && strings.Contains(rawURL, "?") {
		return ProbeResult{Outcome: OutcomeSkipped}
	}

	rel, err := p.cache.BuildCachePath(rawURL)
	if err != nil {
		p.logger.Debug("cannot build cache path", zap.String("url", rawURL), zap.Error(err))
		return ProbeResult{Outcome: OutcomeSkipped}
	}
	info, err := os.Stat(p.cache.CacheDir(rel))
	if err != nil || !info.Mode().IsRegular() {
		return ProbeResult{Outcome: OutcomeUncached}
	}
	if !info.ModTime().Before(p.clock.Now().Add(-p.opts.CacheMaxAge)) {
		return ProbeResult{Outcome: OutcomeFresh}
	}

	result := ProbeResult{Outcome: OutcomeDispatched}
	dispatchErr := p.dispatcher.Dispatch(ctx, rawURL, p.opts.WarmingUserAgent())
	if dispatchErr != nil {
		result.Outcome = OutcomeDispatchFailed
		p.logger.Debug("warming dispatch failed", zap.String("url", rawURL), zap.Error(dispatchErr))
	}
	if err := p.runLog.LogAttempt(ctx, rawURL, dispatchErr); err != nil {
		result.LogErr = err
	}
	return result
}
