package config

import (
	"encoding/json"
	"fmt"

	"github.com/harun/logkeeper/pkg/logger"
)

// Config represents the logkeeper configuration
type Config struct {
	// Logging session setup
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Scheduled retention
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`
}

// JanitorConfig holds settings for the scheduled retention pass
type JanitorConfig struct {
	Schedule    string `json:"schedule" mapstructure:"schedule"`         // cron expression or @descriptor
	RunOnStart  bool   `json:"run_on_start" mapstructure:"run_on_start"` // prune once before the first tick
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"` // serve /metrics here, empty disables
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Janitor: JanitorConfig{
			Schedule:   "@hourly",
			RunOnStart: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	v := NewValidator()
	if err := v.ValidateSchedule(c.Janitor.Schedule); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	if err := v.ValidateListenAddr(c.Janitor.MetricsAddr); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}

	return nil
}
