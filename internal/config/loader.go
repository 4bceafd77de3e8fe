package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// LOGKEEPER_LOGGING_MAX_LOGFILE_COUNT=10
const EnvPrefix = "LOGKEEPER"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file, if any, and applies environment overrides on
// top of the defaults
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := l.newViper()
	setDefaults(v, DefaultConfig())

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Logging.RedactPatterns) == 0 {
		cfg.Logging.RedactPatterns = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to file. The format follows the file
// extension (json or yaml).
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("no config path available")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for key, value := range settings(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "logkeeper", "logkeeper.json")
}

func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so that AutomaticEnv overrides reach
// Unmarshal even when the file does not mention them
func setDefaults(v *viper.Viper, cfg *Config) {
	for key, value := range settings(cfg) {
		v.SetDefault(key, value)
	}
}

func settings(cfg *Config) map[string]interface{} {
	lc := cfg.Logging
	patterns := lc.RedactPatterns
	if patterns == nil {
		patterns = []string{}
	}

	return map[string]interface{}{
		"logging.max_logfile_count":    lc.MaxLogfileCount,
		"logging.debug":                lc.Debug,
		"logging.child":                lc.Child,
		"logging.log_directory_name":   lc.LogDirectoryName,
		"logging.level":                lc.Level,
		"logging.prune_mode":           string(lc.PruneMode),
		"logging.prune_failure_policy": string(lc.PruneFailurePolicy),
		"logging.max_size_mb":          lc.MaxSizeMB,
		"logging.redaction":            lc.Redaction,
		"logging.redact_patterns":      patterns,
		"janitor.schedule":             cfg.Janitor.Schedule,
		"janitor.run_on_start":         cfg.Janitor.RunOnStart,
		"janitor.metrics_addr":         cfg.Janitor.MetricsAddr,
	}
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
