// Package collyfetcher sends cache-warming requests through an async gocolly
// collector.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/metrics"
)

// ErrClosed is returned by Dispatch once the dispatcher has been closed.
var ErrClosed = errors.New("dispatcher is closed")

const (
	defaultParallelism = 4
	defaultTimeout     = 15 * time.Second
	// Only enough of the page is read for the origin to finish rendering it.
	defaultMaxBodySize = 256 << 10
)

// Config controls collector behavior.
type Config struct {
	Parallelism int
	Timeout     time.Duration
	MaxBodySize int
	// Transport overrides the HTTP transport (primarily for testing).
	Transport http.RoundTripper
}

// Dispatcher fires warming GETs without waiting for their responses.
type Dispatcher struct {
	collector *colly.Collector
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Dispatcher.
func New(cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: cfg.Parallelism}); err != nil {
		return nil, fmt.Errorf("configure colly limits: %w", err)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)

	d := &Dispatcher{collector: c, logger: logger}
	d.configureCollectorHooks(c)
	return d, nil
}

func (d *Dispatcher) configureCollectorHooks(hooks collectorHooks) {
	hooks.OnResponse(func(r *colly.Response) {
		metrics.ObserveWarmResponse(r.Request.URL.String(), r.StatusCode)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		code := 0
		target := ""
		if r != nil {
			code = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				target = r.Request.URL.String()
			}
		}
		metrics.ObserveWarmResponse(target, code)
		d.logger.Debug("warming request failed",
			zap.String("url", target),
			zap.Int("status_code", code),
			zap.Error(err),
		)
	})
}

// Dispatch queues a GET for rawURL with the given user agent. The returned
// error only covers the submission; the response is observed asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, rawURL string, userAgent string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatch canceled: %w", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	hdr := http.Header{}
	if userAgent != "" {
		hdr.Set("User-Agent", userAgent)
	}
	if err := d.collector.Request(http.MethodGet, rawURL, nil, nil, hdr); err != nil {
		return fmt.Errorf("colly visit failed: %w", err)
	}
	return nil
}

// Close stops accepting work and waits for in-flight requests until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.collector.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain warming requests: %w", ctx.Err())
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
