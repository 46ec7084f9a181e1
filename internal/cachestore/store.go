// Package cachestore is the on-disk boundary of the page cache: where the
// cache directory lives, where each URL's artifact is kept, and the file
// locks shared with the cache writer.
package cachestore

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/autocache-warmer/internal/hash/sha256"
)

// IndexFile is the artifact name stored for a page.
const IndexFile = "index.html"

// Config captures the parameters for the cache store.
type Config struct {
	// Dir is the root directory of the page cache.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Store maps URLs onto artifact paths under a cache directory.
type Store struct {
	root   string
	hasher *sha256.Hasher
}

// New creates a store rooted at cfg.Dir. The directory is not created; a
// missing cache directory is a reason for runs to skip.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return &Store{root: abs, hasher: sha256.New(sha256.DefaultDigestBytes)}, nil
}

// CacheDir joins elem onto the cache root. Elements that would climb out of
// the root are clamped to it.
func (s *Store) CacheDir(elem ...string) string {
	if len(elem) == 0 {
		return s.root
	}
	rel := filepath.Clean(filepath.Join(append([]string{string(filepath.Separator)}, elem...)...))
	return filepath.Join(s.root, rel)
}

// BuildCachePath returns "<scheme>/<host>/<path>/index.html" relative to the
// cache root. Ports are kept with ':' replaced by '-'. A query string selects
// "index-<digest>.html" so distinct queries never share an artifact.
func (s *Store) BuildCachePath(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	host := strings.ReplaceAll(strings.ToLower(u.Host), ":", "-")
	cleanPath := strings.TrimPrefix(path.Clean("/"+u.Path), "/")

	file := IndexFile
	if u.RawQuery != "" {
		file = "index-" + s.hasher.Short(u.RawQuery) + ".html"
	}

	parts := []string{u.Scheme, host}
	if cleanPath != "" {
		parts = append(parts, strings.Split(cleanPath, "/")...)
	}
	parts = append(parts, file)
	return filepath.Join(parts...), nil
}
