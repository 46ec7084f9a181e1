package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// newRunCmd creates the 'run' subcommand, which performs one bounded
// auto-cache run and prints its stats as JSON.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Performs one auto-cache run now",
		Long: `Collects the configured sitemaps and URL lists, warms every stale cached
page within the max_time budget, appends to the run log in the cache
directory, and prints the run stats.`,
		RunE: runRunCommand,
	}
}

type runOutput struct {
	warmer.RunStats
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	stats, err := appInstance.GetCoordinator().RunNow(cmd.Context())
	if err != nil {
		return fmt.Errorf("run auto-cache: %w", err)
	}
	if stats.Skipped != "" {
		logger.Info("Run skipped", zap.String("reason", stats.Skipped))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(runOutput{RunStats: stats, ElapsedSeconds: stats.ElapsedSeconds()}); err != nil {
		return fmt.Errorf("write run stats: %w", err)
	}
	return nil
}
