package warmer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/autocache-warmer/internal/metrics"
)

// DefaultMaxRedirects is how many redirects a sitemap check follows.
const DefaultMaxRedirects = 5

// SitemapCollector resolves XML sitemaps, including nested sitemap indexes,
// into the page URLs they list. Gzipped sitemaps are not supported.
type SitemapCollector struct {
	client *http.Client
	logger *zap.Logger
}

// NewSitemapCollector builds a collector on top of client. A nil client gets
// NewSitemapClient defaults.
func NewSitemapCollector(client *http.Client, logger *zap.Logger) *SitemapCollector {
	if client == nil {
		client = NewSitemapClient(15*time.Second, DefaultMaxRedirects)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapCollector{client: client, logger: logger}
}

// NewSitemapClient returns an HTTP client that gives up after maxRedirects redirects.
func NewSitemapClient(timeout time.Duration, maxRedirects int) *http.Client {
	if maxRedirects < 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// sitemapWalk is the state shared by one top-level Collect call.
type sitemapWalk struct {
	visited map[string]struct{}
}

// Collect returns every <loc> reachable from sitemapURL. Only a problem with
// sitemapURL itself is reported; broken nested sitemaps contribute nothing.
// The result may contain duplicates.
func (c *SitemapCollector) Collect(ctx context.Context, sitemapURL string) ([]string, error) {
	walk := &sitemapWalk{visited: make(map[string]struct{})}
	return c.collect(ctx, walk, sitemapURL, false)
}

func (c *SitemapCollector) collect(
	ctx context.Context,
	walk *sitemapWalk,
	sitemapURL string,
	isRecursiveCall bool,
) ([]string, error) {
	sitemapURL = strings.TrimSpace(sitemapURL)
	if sitemapURL == "" {
		return nil, nil
	}
	if _, seen := walk.visited[sitemapURL]; seen {
		return nil, nil
	}
	walk.visited[sitemapURL] = struct{}{}

	if err := c.check(ctx, sitemapURL); err != nil {
		if isRecursiveCall {
			metrics.ObserveSitemap("nested_skipped")
			c.logger.Debug("skipping nested sitemap", zap.String("sitemap", sitemapURL), zap.Error(err))
			return nil, nil
		}
		metrics.ObserveSitemap("invalid")
		return nil, err
	}

	urls, nested := c.stream(ctx, sitemapURL)
	metrics.ObserveSitemap("ok")
	for _, loc := range nested {
		// Recursive calls report failures as an empty result, never an error.
		child, _ := c.collect(ctx, walk, loc, true)
		urls = append(urls, child...)
	}
	return urls, nil
}

// check issues a HEAD request and validates status and content type.
func (c *SitemapCollector) check(ctx context.Context, sitemapURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sitemapURL, nil)
	if err != nil {
		return &InvalidSitemapError{URL: sitemapURL, Reason: "unreachable URL", Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &InvalidSitemapError{URL: sitemapURL, Reason: "unreachable URL", Err: err}
	}
	defer closeBody(resp.Body)

	if resp.StatusCode == 0 || resp.StatusCode >= http.StatusBadRequest {
		return &InvalidSitemapError{
			URL:        sitemapURL,
			StatusCode: resp.StatusCode,
			Reason:     "expecting a 200 status",
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "xml") {
		return &InvalidSitemapError{
			URL:         sitemapURL,
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			Reason:      "expecting XML",
		}
	}
	return nil
}

// stream downloads the document and decodes it token by token. urls holds
// <urlset> entries, nested holds <sitemapindex> entries still to be walked.
func (c *SitemapCollector) stream(ctx context.Context, sitemapURL string) (urls, nested []string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("sitemap download failed", zap.String("sitemap", sitemapURL), zap.Error(err))
		return nil, nil
	}
	defer closeBody(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("sitemap download failed",
			zap.String("sitemap", sitemapURL),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, nil
	}

	dec := xml.NewDecoder(resp.Body)
	dec.CharsetReader = charset.NewReaderLabel
	return scanSitemap(dec)
}

type tokenReader interface {
	Token() (xml.Token, error)
}

// scanSitemap looks for the first <sitemapindex> or <urlset> element and reads
// the rest of the document in that mode. Decode errors end the scan quietly.
func scanSitemap(dec tokenReader) (urls, nested []string) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "sitemapindex":
			return nil, readLocs(dec, "sitemap")
		case "urlset":
			return readLocs(dec, "url"), nil
		}
	}
}

// readLocs honors a <loc> only while the most recent element was parent (or
// another <loc>). Any other element clears the flag, so attribution is shallow:
// <url><lastmod/><loc> is ignored. The token right after <loc> is consumed and
// used only if it is text.
func readLocs(dec tokenReader, parent string) []string {
	var (
		locs         []string
		isParentNode bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return locs
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case parent:
			isParentNode = true
		case "loc":
			if !isParentNode {
				continue
			}
			next, err := dec.Token()
			if err != nil {
				return locs
			}
			if text, ok := next.(xml.CharData); ok {
				if loc := strings.TrimSpace(string(text)); loc != "" {
					locs = append(locs, loc)
				}
			}
		default:
			isParentNode = false
		}
	}
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
