package cli

import (
	"fmt"
	"time"

	"github.com/harun/logkeeper/internal/config"
	"github.com/harun/logkeeper/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	logDir   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "logkeeper",
	Short: "logkeeper - log directory management",
	Long: `logkeeper manages the log directory of an application: it resolves where
logs live, keeps the directory within its retention window, writes records
through a logging session and tails the newest log file.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/logkeeper/logkeeper.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level for logkeeper itself (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "dir", "", "log directory name or absolute path (overrides the config)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// setupLogging points the global logger at stderr. Sessions opened by
// commands have their own loggers and are not affected.
func setupLogging(cmd *cobra.Command, args []string) error {
	if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()

	return nil
}

// loadConfig loads the config file and applies --dir
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logDir != "" {
		cfg.Logging.LogDirectoryName = logDir
	}
	return cfg, nil
}

// resolveDir resolves the configured log directory
func resolveDir(cfg *config.Config) (string, error) {
	dir, err := logger.NewPathResolver().Resolve(cfg.Logging.LogDirectoryName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.Debug().Str("dir", dir).Msg("Resolved log directory")
	return dir, nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
