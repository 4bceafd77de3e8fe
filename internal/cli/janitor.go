package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/logkeeper/internal/janitor"
	"github.com/harun/logkeeper/internal/metrics"
	"github.com/harun/logkeeper/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	janitorSchedule    string
	janitorMetricsAddr string
	janitorOnce        bool
)

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Keep the log directory pruned on a schedule",
	Long: `Run retention passes over the log directory on a cron schedule until
interrupted. Accepts five-field cron expressions and descriptors such as
@hourly or "@every 10m". Optionally serves Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: runJanitor,
}

func init() {
	janitorCmd.Flags().StringVar(&janitorSchedule, "schedule", "", "cron schedule (default from config)")
	janitorCmd.Flags().StringVar(&janitorMetricsAddr, "metrics-addr", "", "serve /metrics on this address (default from config)")
	janitorCmd.Flags().BoolVar(&janitorOnce, "once", false, "run a single pass and exit")
	rootCmd.AddCommand(janitorCmd)
}

func runJanitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if janitorSchedule != "" {
		cfg.Janitor.Schedule = janitorSchedule
	}
	if janitorMetricsAddr != "" {
		cfg.Janitor.MetricsAddr = janitorMetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := resolveDir(cfg)
	if err != nil {
		return err
	}

	j, err := janitor.New(janitor.Options{
		Dir:         dir,
		MaxCount:    cfg.Logging.MaxLogfileCount,
		Schedule:    cfg.Janitor.Schedule,
		RunOnStart:  cfg.Janitor.RunOnStart,
		MetricsAddr: cfg.Janitor.MetricsAddr,
		Manager:     logger.NewRetentionManager(cfg.Logging.PruneMode, cfg.Logging.PruneFailurePolicy),
		Metrics:     metrics.NewMetrics(),
	})
	if err != nil {
		return err
	}

	if janitorOnce {
		res := j.RunOnce()
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d log file(s) kept in %s\n", len(res.Retained), dir)
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return j.Run(ctx)
}
