// Package config loads the supervisor's own boot-time configuration and
// discovers the subsystems it is responsible for.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Defaults mirror the values named in the concurrency & resource model.
const (
	DefaultPortInterprocess  = 5555
	DefaultHeartbeatInterval = 10.0
	DefaultHeartbeatTimeout  = 20.0
	DefaultRestartDelay      = 2.0
	DefaultMonitorInterval   = 5.0
)

// LogConfig describes the supervisor's own rotating log sink.
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// SupervisorConfig is loaded once at boot from a single file. All fields
// have defaults; a missing or empty config file is not an error.
type SupervisorConfig struct {
	PortInterprocess  int     `mapstructure:"PORT_INTERPROCESS"`
	HeartbeatInterval float64 `mapstructure:"HEARTBEAT_INTERVAL"`
	HeartbeatTimeout  float64 `mapstructure:"HEARTBEAT_TIMEOUT"`
	RestartDelay      float64 `mapstructure:"RESTART_DELAY"`
	MonitorInterval   float64 `mapstructure:"MONITOR_INTERVAL"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func (c *SupervisorConfig) applyDefaults() {
	if c.PortInterprocess <= 0 {
		c.PortInterprocess = DefaultPortInterprocess
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = DefaultRestartDelay
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}
}

func (c *SupervisorConfig) HeartbeatIntervalDuration() time.Duration {
	return time.Duration(c.HeartbeatInterval * float64(time.Second))
}

func (c *SupervisorConfig) HeartbeatTimeoutDuration() time.Duration {
	return time.Duration(c.HeartbeatTimeout * float64(time.Second))
}

func (c *SupervisorConfig) RestartDelayDuration() time.Duration {
	return time.Duration(c.RestartDelay * float64(time.Second))
}

func (c *SupervisorConfig) MonitorIntervalDuration() time.Duration {
	return time.Duration(c.MonitorInterval * float64(time.Second))
}

// LoadSupervisorConfig reads the supervisor config file (TOML/YAML/JSON,
// whichever viper sniffs from the extension) and applies defaults for any
// field left unset. A missing file is tolerated; every field falls back to
// its default.
func LoadSupervisorConfig(path string) (*SupervisorConfig, error) {
	cfg := &SupervisorConfig{}
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read supervisor config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal supervisor config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}
