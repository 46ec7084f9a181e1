package warmer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const xmlType = "application/xml; charset=UTF-8"

func xmlResponder(status int, contentType, body string) httpmock.Responder {
	return func(_ *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		if contentType != "" {
			resp.Header.Set("Content-Type", contentType)
		}
		return resp, nil
	}
}

// serveDoc answers both the HEAD check and the GET for url.
func serveDoc(transport *httpmock.MockTransport, url string, status int, contentType, body string) {
	transport.RegisterResponder(http.MethodHead, url, xmlResponder(status, contentType, ""))
	transport.RegisterResponder(http.MethodGet, url, xmlResponder(status, contentType, body))
}

func newTestCollector(t *testing.T) (*SitemapCollector, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := NewSitemapClient(time.Second, DefaultMaxRedirects)
	client.Transport = transport
	return NewSitemapCollector(client, zap.NewNop()), transport
}

func TestCollectURLSetIgnoresFormatting(t *testing.T) {
	t.Parallel()

	compact := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>http://example.com/</loc></url><url><loc>http://example.com/a/</loc><lastmod>2024-01-01</lastmod></url><url><loc>http://example.com/b/</loc></url></urlset>`
	pretty := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>
      http://example.com/
    </loc>
  </url>
  <url>
    <loc><![CDATA[http://example.com/a/]]></loc>
    <lastmod>2024-01-01</lastmod>
  </url>
  <url><loc>http://example.com/b/</loc></url>
</urlset>
`
	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/compact.xml", http.StatusOK, xmlType, compact)
	serveDoc(transport, "http://example.com/pretty.xml", http.StatusOK, "text/xml", pretty)

	want := []string{"http://example.com/", "http://example.com/a/", "http://example.com/b/"}
	for _, u := range []string{"http://example.com/compact.xml", "http://example.com/pretty.xml"} {
		got, err := c.Collect(context.Background(), u)
		require.NoError(t, err, u)
		assert.ElementsMatch(t, want, got, u)
	}
}

func TestCollectIndexSkipsUnreachableChild(t *testing.T) {
	t.Parallel()

	index := `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>http://example.com/posts.xml</loc></sitemap>
  <sitemap><loc>http://example.com/missing.xml</loc></sitemap>
  <sitemap><loc>http://example.com/html.xml</loc></sitemap>
  <sitemap><loc>http://example.com/pages.xml</loc></sitemap>
</sitemapindex>`
	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/sitemap.xml", http.StatusOK, xmlType, index)
	serveDoc(transport, "http://example.com/posts.xml", http.StatusOK, xmlType,
		`<urlset><url><loc>http://example.com/p1/</loc></url><url><loc>http://example.com/p2/</loc></url></urlset>`)
	serveDoc(transport, "http://example.com/missing.xml", http.StatusNotFound, "text/html", "nope")
	serveDoc(transport, "http://example.com/html.xml", http.StatusOK, "text/html", "<html></html>")
	serveDoc(transport, "http://example.com/pages.xml", http.StatusOK, xmlType,
		`<urlset><url><loc>http://example.com/about/</loc></url></urlset>`)

	got, err := c.Collect(context.Background(), "http://example.com/sitemap.xml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"http://example.com/p1/",
		"http://example.com/p2/",
		"http://example.com/about/",
	}, got)
}

func TestCollectNestedIndexes(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/root.xml", http.StatusOK, xmlType,
		`<sitemapindex><sitemap><loc>http://example.com/mid.xml</loc></sitemap></sitemapindex>`)
	serveDoc(transport, "http://example.com/mid.xml", http.StatusOK, xmlType,
		`<sitemapindex><sitemap><loc>http://example.com/leaf.xml</loc></sitemap></sitemapindex>`)
	serveDoc(transport, "http://example.com/leaf.xml", http.StatusOK, xmlType,
		`<urlset><url><loc>http://example.com/deep/</loc></url></urlset>`)

	got, err := c.Collect(context.Background(), "http://example.com/root.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/deep/"}, got)
}

func TestCollectStopsOnCycles(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/a.xml", http.StatusOK, xmlType,
		`<sitemapindex>
  <sitemap><loc>http://example.com/a.xml</loc></sitemap>
  <sitemap><loc>http://example.com/b.xml</loc></sitemap>
</sitemapindex>`)
	serveDoc(transport, "http://example.com/b.xml", http.StatusOK, xmlType,
		`<sitemapindex><sitemap><loc>http://example.com/a.xml</loc></sitemap></sitemapindex>`)

	got, err := c.Collect(context.Background(), "http://example.com/a.xml")
	require.NoError(t, err)
	assert.Empty(t, got)

	info := transport.GetCallCountInfo()
	assert.Equal(t, 1, info["GET http://example.com/a.xml"])
	assert.Equal(t, 1, info["GET http://example.com/b.xml"])
}

func TestCollectTopLevelErrors(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/404.xml", http.StatusNotFound, xmlType, "")
	serveDoc(transport, "http://example.com/500.xml", http.StatusInternalServerError, xmlType, "")
	serveDoc(transport, "http://example.com/page.xml", http.StatusOK, "text/html; charset=UTF-8", "<html/>")
	serveDoc(transport, "http://example.com/untyped.xml", http.StatusOK, "", "<urlset/>")

	testCases := []struct {
		url    string
		status int
		reason string
	}{
		{"http://example.com/404.xml", http.StatusNotFound, "expecting a 200 status"},
		{"http://example.com/500.xml", http.StatusInternalServerError, "expecting a 200 status"},
		{"http://example.com/page.xml", http.StatusOK, "expecting XML"},
		{"http://example.com/untyped.xml", http.StatusOK, "expecting XML"},
		{"http://example.com/unregistered.xml", 0, "unreachable URL"},
	}
	for _, tc := range testCases {
		got, err := c.Collect(context.Background(), tc.url)
		assert.Nil(t, got, tc.url)

		var invalid *InvalidSitemapError
		require.True(t, errors.As(err, &invalid), tc.url)
		assert.Equal(t, tc.url, invalid.URL)
		assert.Equal(t, tc.status, invalid.StatusCode, tc.url)
		assert.Equal(t, tc.reason, invalid.Reason, tc.url)
	}
}

func TestCollectAcceptsRedirectStatus(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/moved.xml", http.StatusNotModified, xmlType,
		`<urlset><url><loc>http://example.com/x/</loc></url></urlset>`)

	_, err := c.Collect(context.Background(), "http://example.com/moved.xml")
	require.NoError(t, err, "statuses below 400 pass the check")
}

func TestCollectFollowsRedirects(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	redirect := func(to string) httpmock.Responder {
		return func(_ *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
			resp.Header.Set("Location", to)
			return resp, nil
		}
	}
	transport.RegisterResponder(http.MethodHead, "http://example.com/old.xml", redirect("http://example.com/new.xml"))
	transport.RegisterResponder(http.MethodGet, "http://example.com/old.xml", redirect("http://example.com/new.xml"))
	serveDoc(transport, "http://example.com/new.xml", http.StatusOK, xmlType,
		`<urlset><url><loc>http://example.com/moved/</loc></url></urlset>`)
	transport.RegisterResponder(http.MethodHead, "http://example.com/loop.xml", redirect("http://example.com/loop.xml"))

	got, err := c.Collect(context.Background(), "http://example.com/old.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/moved/"}, got)

	_, err = c.Collect(context.Background(), "http://example.com/loop.xml")
	var invalid *InvalidSitemapError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "unreachable URL", invalid.Reason)
	assert.Contains(t, err.Error(), "stopped after 5 redirects")
}

func TestCollectEmptyURL(t *testing.T) {
	t.Parallel()

	c, _ := newTestCollector(t)
	got, err := c.Collect(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectKeepsLocsBeforeMalformedXML(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/broken.xml", http.StatusOK, xmlType,
		`<urlset><url><loc>http://example.com/1/</loc></url><url><loc>http://example.com/2/</loc></url><url><lo`)

	got, err := c.Collect(context.Background(), "http://example.com/broken.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/1/", "http://example.com/2/"}, got)
}

func TestCollectGetFailureKeepsNothing(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	transport.RegisterResponder(http.MethodHead, "http://example.com/flaky.xml", xmlResponder(http.StatusOK, xmlType, ""))
	transport.RegisterResponder(http.MethodGet, "http://example.com/flaky.xml", httpmock.NewErrorResponder(errBoom))

	got, err := c.Collect(context.Background(), "http://example.com/flaky.xml")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadLocsShallowAttribution(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/shallow.xml", http.StatusOK, xmlType, `<urlset>
  <loc>http://example.com/orphan/</loc>
  <url><lastmod>2024-01-01</lastmod><loc>http://example.com/after-lastmod/</loc></url>
  <url><loc>http://example.com/first/</loc><loc>http://example.com/second/</loc></url>
  <url><loc></loc></url>
  <url><loc><b>http://example.com/nested-element/</b></loc></url>
  <url><loc>   </loc></url>
</urlset>`)

	got, err := c.Collect(context.Background(), "http://example.com/shallow.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/first/", "http://example.com/second/"}, got)
}

func TestCollectUnknownRootYieldsNothing(t *testing.T) {
	t.Parallel()

	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/feed.xml", http.StatusOK, "application/rss+xml",
		`<rss><channel><item><loc>http://example.com/no/</loc></item></channel></rss>`)

	got, err := c.Collect(context.Background(), "http://example.com/feed.xml")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectLatin1Charset(t *testing.T) {
	t.Parallel()

	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<urlset><url><loc>http://example.com/caf\xe9/</loc></url></urlset>"
	c, transport := newTestCollector(t)
	serveDoc(transport, "http://example.com/latin1.xml", http.StatusOK, "text/xml", body)

	got, err := c.Collect(context.Background(), "http://example.com/latin1.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/café/"}, got)
}
