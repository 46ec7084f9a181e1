package registry

import (
	"context"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// Static serves a fixed list of sites.
type Static struct {
	sites []warmer.Site
}

// NewStatic copies sites into a registry.
func NewStatic(sites []StaticSite) *Static {
	out := make([]warmer.Site, 0, len(sites))
	for _, s := range sites {
		if s.Domain == "" {
			continue
		}
		out = append(out, warmer.Site{Domain: s.Domain, Path: s.Path})
	}
	return &Static{sites: out}
}

// ListSites returns a copy of the configured sites.
func (s *Static) ListSites(_ context.Context) ([]warmer.Site, error) {
	return append([]warmer.Site(nil), s.sites...), nil
}

// Close is a no-op.
func (s *Static) Close() {}
