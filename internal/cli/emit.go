package cli

import (
	"fmt"
	"strings"

	"github.com/harun/logkeeper/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	emitLevel string
	emitChild bool
	emitDebug bool
)

var emitCmd = &cobra.Command{
	Use:   "emit [message...]",
	Short: "Write one record through a logging session",
	Long: `Open a logging session, write the message as one record and shut the
session down. The directory is pruned first, as for any session. With
--child the record is appended to the newest log file and tagged with this
process's PID; otherwise a new log file is created. The log file path is
printed on success.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmit,
}

func init() {
	emitCmd.Flags().StringVar(&emitLevel, "level", "info", "record level (debug, info, warn, error)")
	emitCmd.Flags().BoolVar(&emitChild, "child", false, "append to the newest log file")
	emitCmd.Flags().BoolVar(&emitDebug, "debug", false, "mirror the record to stdout")
	rootCmd.AddCommand(emitCmd)
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(emitLevel)
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("invalid record level %q", emitLevel)
	}

	lc := cfg.Logging
	threshold := zerolog.InfoLevel
	if lc.Level != "" {
		if threshold, err = zerolog.ParseLevel(lc.Level); err != nil {
			return fmt.Errorf("invalid logging level %q: %w", lc.Level, err)
		}
	}
	if level < threshold {
		return fmt.Errorf("record level %s is below the configured logging level %s", level, threshold)
	}
	if emitChild {
		lc.Child = true
	}
	if emitDebug {
		lc.Debug = true
	}

	var path string
	err = logger.Run(lc, func(s *logger.Session) error {
		path = s.Path()
		return s.Logf(level, "%s", strings.Join(args, " "))
	}, logger.WithConsoleOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
