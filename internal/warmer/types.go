package warmer

import (
	"strings"
	"time"
)

// Version is reported in the warming user agent.
var Version = "1.0.0"

const (
	productName = "autocache-warmer"

	defaultMaxTime = 900 * time.Second
	minMaxTime     = 60
	safetyMargin   = 30 * time.Second
)

// Site is one root to warm. Only the network home site carries ExtraURLs.
type Site struct {
	Domain    string   `json:"domain"`
	Path      string   `json:"path"`
	ExtraURLs []string `json:"extra_urls,omitempty"`
}

// BaseURL builds "<scheme>://<domain>/<path>" without a trailing slash.
func (s Site) BaseURL(scheme string) string {
	if scheme == "" {
		scheme = "http"
	}
	base := scheme + "://" + strings.Trim(s.Domain, "/")
	if p := strings.Trim(s.Path, "/"); p != "" {
		base += "/" + p
	}
	return base
}

// SitemapURL appends sitemapPath to the site's base URL.
func (s Site) SitemapURL(scheme, sitemapPath string) string {
	sitemapPath = strings.TrimLeft(strings.TrimSpace(sitemapPath), "/")
	if sitemapPath == "" {
		return ""
	}
	return s.BaseURL(scheme) + "/" + sitemapPath
}

// Options are the auto-cache settings consumed by a run.
type Options struct {
	Enabled           bool
	AutoCacheEnabled  bool
	SitemapPath       string
	OtherURLs         []string
	MaxTimeSeconds    int
	Delay             time.Duration
	UserAgent         string
	Scheme            string
	AllowQueryStrings bool
	CacheMaxAge       time.Duration
}

// MaxTime is the configured budget when above 60 seconds, 900 seconds otherwise.
func (o Options) MaxTime() time.Duration {
	if o.MaxTimeSeconds > minMaxTime {
		return time.Duration(o.MaxTimeSeconds) * time.Second
	}
	return defaultMaxTime
}

// StopAfter is the elapsed time after which a run stops taking new URLs.
func (o Options) StopAfter() time.Duration {
	return o.MaxTime() - safetyMargin
}

// WarmingUserAgent appends the product name and version to the configured agent.
func (o Options) WarmingUserAgent() string {
	return o.UserAgent + "; " + productName + " " + Version
}

// RunStats summarises one auto-cache run.
type RunStats struct {
	RunID         string        `json:"run_id"`
	Started       time.Time     `json:"started"`
	TotalURLs     int           `json:"total_urls"`
	Dispatched    int           `json:"dispatched"`
	Elapsed       time.Duration `json:"elapsed"`
	DeadlineHit   bool          `json:"deadline_hit"`
	SitemapErrors []string      `json:"sitemap_errors,omitempty"`
	LogErrors     []string      `json:"log_errors,omitempty"`
	Skipped       string        `json:"skipped,omitempty"`
}

// ElapsedSeconds reports the run duration with sub-second precision.
func (s RunStats) ElapsedSeconds() float64 {
	return s.Elapsed.Seconds()
}

// ProbeOutcome describes what a probe did with a URL.
type ProbeOutcome string

// Probe outcomes.
const (
	OutcomeSkipped        ProbeOutcome = "skipped"
	OutcomeUncached       ProbeOutcome = "uncached"
	OutcomeFresh          ProbeOutcome = "fresh"
	OutcomeDispatched     ProbeOutcome = "dispatched"
	OutcomeDispatchFailed ProbeOutcome = "dispatch_failed"
)

// ProbeResult is returned by Prober. LogErr is set when the attempt could not be logged.
type ProbeResult struct {
	Outcome ProbeOutcome
	LogErr  error
}
