package cli

import (
	"fmt"

	"github.com/harun/logkeeper/pkg/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pruneMax    int
	pruneMode   string
	pruneDryRun bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old log files beyond the retention window",
	Long: `Run one retention pass over the log directory: keep the newest log files
up to the retention window and delete or archive the rest. Files that are
not .log files are never touched.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneMax, "max", 0, "number of log files to keep (default from config)")
	pruneCmd.Flags().StringVar(&pruneMode, "mode", "", "prune mode: delete or archive (default from config)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "print the files that would be pruned without touching them")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lc := cfg.Logging
	if cmd.Flags().Changed("max") {
		lc.MaxLogfileCount = pruneMax
	}
	if pruneMode != "" {
		lc.PruneMode = logger.PruneMode(pruneMode)
	}
	if err := lc.Validate(); err != nil {
		return err
	}

	dir, err := resolveDir(cfg)
	if err != nil {
		return err
	}

	before, err := logger.ListLogFiles(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", logger.ErrDirectoryUnavailable, err)
	}

	out := cmd.OutOrStdout()

	if pruneDryRun {
		excess := len(before) - lc.MaxLogfileCount
		for i := 0; i < excess; i++ {
			fmt.Fprintf(out, "would %s %s\n", lc.PruneMode, before[i].Name)
		}
		return nil
	}

	manager := logger.NewRetentionManager(lc.PruneMode, lc.PruneFailurePolicy)
	manager.OnFailure = func(pe *logger.PruneError) {
		log.Warn().Err(pe.Err).Str("file", pe.Path).Msg("Failed to prune log file")
	}

	kept, err := manager.Prune(dir, lc.MaxLogfileCount)
	if err != nil {
		return err
	}

	survivors := make(map[string]bool, len(kept))
	for _, f := range kept {
		survivors[f.Name] = true
	}
	for _, f := range before {
		if !survivors[f.Name] {
			fmt.Fprintf(out, "%s %s\n", pastTense(lc.PruneMode), f.Name)
		}
	}
	fmt.Fprintf(out, "%d log file(s) kept in %s\n", len(kept), dir)

	return nil
}

func pastTense(mode logger.PruneMode) string {
	if mode == logger.PruneArchive {
		return "archived"
	}
	return "deleted"
}
