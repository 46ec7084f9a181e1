package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// ErrRunInProgress is returned by RunNow when another run is active in this process.
var ErrRunInProgress = errors.New("an auto-cache run is already in progress")

type runner interface {
	Run(ctx context.Context) warmer.RunStats
}

// Coordinator allows at most one run at a time in this process and keeps the
// stats of the most recent one.
type Coordinator struct {
	runner runner
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *warmer.RunStats
}

// NewCoordinator wraps r. Background runs use a context canceled by Close.
func NewCoordinator(r runner, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{runner: r, logger: logger, ctx: ctx, cancel: cancel}
}

// RunNow performs a run on the caller's goroutine.
func (c *Coordinator) RunNow(ctx context.Context) (warmer.RunStats, error) {
	if !c.claim() {
		return warmer.RunStats{}, ErrRunInProgress
	}
	return c.execute(ctx), nil
}

// Start begins a run in the background. It returns false if one is running.
func (c *Coordinator) Start() bool {
	if c.ctx.Err() != nil || !c.claim() {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.execute(c.ctx)
	}()
	return true
}

// Running reports whether a run is in progress.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Last returns the stats of the most recent finished run.
func (c *Coordinator) Last() (warmer.RunStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return warmer.RunStats{}, false
	}
	return *c.last, true
}

// Close cancels background runs and waits for them to return.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) claim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

func (c *Coordinator) execute(ctx context.Context) warmer.RunStats {
	stats := c.runner.Run(ctx)

	c.mu.Lock()
	c.running = false
	c.last = &stats
	c.mu.Unlock()

	if stats.Skipped != "" {
		c.logger.Info("auto-cache run skipped", zap.String("reason", stats.Skipped))
	}
	return stats
}
