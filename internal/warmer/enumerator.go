package warmer

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// SiteEnumerator produces the network home site, which carries the explicit
// URL list, followed by any child sites from the registry.
type SiteEnumerator struct {
	homeURL   string
	otherURLs []string
	registry  SiteRegistry
	logger    *zap.Logger
}

// NewSiteEnumerator builds an enumerator. registry may be nil for single-site installs.
func NewSiteEnumerator(homeURL string, otherURLs []string, registry SiteRegistry, logger *zap.Logger) *SiteEnumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteEnumerator{
		homeURL:   homeURL,
		otherURLs: append([]string(nil), otherURLs...),
		registry:  registry,
		logger:    logger,
	}
}

// Enumerate never fails; registry errors are logged and leave only the home site.
func (e *SiteEnumerator) Enumerate(ctx context.Context) []Site {
	var sites []Site
	if home, ok := e.homeSite(); ok {
		sites = append(sites, home)
	} else {
		e.logger.Warn("home url has no host; skipping home site", zap.String("home_url", e.homeURL))
	}
	if e.registry == nil {
		return sites
	}
	children, err := e.registry.ListSites(ctx)
	if err != nil {
		e.logger.Warn("site registry unavailable; warming home site only", zap.Error(err))
		return sites
	}
	return append(sites, children...)
}

func (e *SiteEnumerator) homeSite() (Site, bool) {
	raw := strings.TrimRight(strings.TrimSpace(e.homeURL), "/")
	if raw == "" {
		return Site{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Site{}, false
	}
	site := Site{Domain: u.Host, Path: u.Path}
	if len(e.otherURLs) > 0 {
		site.ExtraURLs = append([]string(nil), e.otherURLs...)
	}
	return site, true
}

// SplitURLList splits a whitespace-separated URL list, dropping empty entries.
func SplitURLList(raw string) []string {
	return strings.Fields(raw)
}
