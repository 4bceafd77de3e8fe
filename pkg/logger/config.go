package logger

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

// DefaultLogDirectoryName is the directory used when none is configured
const DefaultLogDirectoryName = "log_files"

// Config holds logging session configuration
type Config struct {
	MaxLogfileCount    int           `json:"max_logfile_count" mapstructure:"max_logfile_count"`       // retention window
	Debug              bool          `json:"debug" mapstructure:"debug"`                               // mirror records to the console
	Child              bool          `json:"child" mapstructure:"child"`                               // append to the newest existing log file
	LogDirectoryName   string        `json:"log_directory_name" mapstructure:"log_directory_name"`     // relative to the executable, or absolute
	Level              string        `json:"level" mapstructure:"level"`                               // debug, info, warn, error
	PruneMode          PruneMode     `json:"prune_mode" mapstructure:"prune_mode"`                     // delete, archive
	PruneFailurePolicy FailurePolicy `json:"prune_failure_policy" mapstructure:"prune_failure_policy"` // warn, fail
	MaxSizeMB          int           `json:"max_size_mb" mapstructure:"max_size_mb"`                   // rotate the active file past this size, 0 disables
	Redaction          bool          `json:"redaction" mapstructure:"redaction"`                       // mask secrets in records
	RedactPatterns     []string      `json:"redact_patterns" mapstructure:"redact_patterns"`           // extra patterns for the redactor
}

// DefaultConfig returns default logging configuration
func DefaultConfig() Config {
	return Config{
		MaxLogfileCount:    30,
		LogDirectoryName:   DefaultLogDirectoryName,
		Level:              "info",
		PruneMode:          PruneDelete,
		PruneFailurePolicy: FailureWarn,
	}
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	if c.MaxLogfileCount < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetention, c.MaxLogfileCount)
	}
	if c.MaxSizeMB < 0 {
		return fmt.Errorf("%w: max_size_mb must be >= 0, got %d", ErrInvalidConfig, c.MaxSizeMB)
	}
	if _, err := c.level(); err != nil {
		return err
	}

	switch c.PruneMode {
	case "", PruneDelete, PruneArchive:
	default:
		return fmt.Errorf("%w: unknown prune mode %q", ErrInvalidConfig, c.PruneMode)
	}

	switch c.PruneFailurePolicy {
	case "", FailureWarn, FailureFail:
	default:
		return fmt.Errorf("%w: unknown prune failure policy %q", ErrInvalidConfig, c.PruneFailurePolicy)
	}

	for _, p := range c.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: redact pattern %q: %v", ErrInvalidConfig, p, err)
		}
	}

	return nil
}

// level parses the configured minimum severity, defaulting to info
func (c Config) level() (zerolog.Level, error) {
	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return level, nil
}

func (c Config) directoryName() string {
	if c.LogDirectoryName == "" {
		return DefaultLogDirectoryName
	}
	return c.LogDirectoryName
}
