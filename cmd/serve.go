package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/api"
)

// newServeCmd creates the 'serve' subcommand: an interval trigger plus the
// operator HTTP API.
func newServeCmd() *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs auto-cache on an interval and serves the HTTP API",
		Long: `Starts a run every schedule.interval (skipping ticks while a run is still
in progress) and, when server.enabled is set, serves health probes,
Prometheus metrics and the /v1/runs API until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "start a run immediately instead of waiting one interval")
	return cmd
}

func runServeCommand(cmd *cobra.Command, runOnStart bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()
	coordinator := appInstance.GetCoordinator()

	var srv *http.Server
	if cfg.Server.Enabled {
		apiServer := api.NewServer(coordinator, api.Config{
			AuthEnabled: cfg.Auth.Enabled,
			APIKey:      cfg.Auth.APIKey,
			Ready:       appInstance.Ready,
		}, logger.Named("api"))
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	if runOnStart {
		coordinator.Start()
	}
	scheduleRuns(ctx, cfg.Schedule.Interval, coordinator.Start, logger)

	logger.Info("shutdown initiated")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
	return nil
}

// scheduleRuns calls start every interval until ctx is done. A zero interval
// disables the trigger and just waits.
func scheduleRuns(ctx context.Context, interval time.Duration, start func() bool, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("interval trigger disabled")
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !start() {
				logger.Info("previous auto-cache run still in progress; skipping tick")
			}
		}
	}
}
