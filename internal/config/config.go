// Package config holds the harrow process configuration. Values come from
// defaults, an optional config file, HARROW_* environment variables and
// command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/jbweber/harrow/internal/reconcile"
)

// EnvPrefix is the prefix of environment overrides, e.g. HARROW_STATE_DIR.
const EnvPrefix = "HARROW"

// Config holds global harrow configuration.
type Config struct {
	// URI is the libvirt auth used by nodes that declare none.
	URI string `json:"uri" mapstructure:"uri"`
	// Socket overrides the local daemon socket for qemu:///system.
	Socket string `json:"socket" mapstructure:"socket"`
	// Timeout bounds hypervisor dials.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// StateDir holds one YAML state file per instance.
	// Env: HARROW_STATE_DIR. Default: /var/lib/harrow/state.
	StateDir string `json:"state_dir" mapstructure:"state_dir"`
	// BackupDir is the base directory of persistent backups. Nodes may
	// override it. Default: /var/lib/harrow/backups.
	BackupDir string `json:"backup_dir" mapstructure:"backup_dir"`

	Retry   RetryConfig   `json:"retry" mapstructure:"retry"`
	Log     LogConfig     `json:"log" mapstructure:"log"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// RetryConfig bounds the convergence loops.
type RetryConfig struct {
	Attempts       int           `json:"attempts" mapstructure:"attempts"`
	Interval       time.Duration `json:"interval" mapstructure:"interval"`
	LeaseInterval  time.Duration `json:"lease_interval" mapstructure:"lease_interval"`
	SampleInterval time.Duration `json:"sample_interval" mapstructure:"sample_interval"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level" mapstructure:"level"`
	// Format is text or json.
	Format string `json:"format" mapstructure:"format"`
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	// File receives metrics in the text exposition format on exit. Empty
	// disables metrics.
	File string `json:"file" mapstructure:"file"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	r := reconcile.DefaultRetry()
	v.SetDefault("uri", "qemu:///system")
	v.SetDefault("socket", "")
	v.SetDefault("timeout", 5*time.Second)
	v.SetDefault("state_dir", "/var/lib/harrow/state")
	v.SetDefault("backup_dir", "/var/lib/harrow/backups")
	v.SetDefault("retry.attempts", r.Attempts)
	v.SetDefault("retry.interval", r.Interval)
	v.SetDefault("retry.lease_interval", r.LeaseInterval)
	v.SetDefault("retry.sample_interval", r.SampleInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.file", "")
}

// New returns a viper instance with defaults and environment overrides
// registered.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes v. A missing file is only
// an error when path was given explicitly.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("harrow")
		v.AddConfigPath("/etc/harrow")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be > 0, got %d", c.Retry.Attempts)
	}
	if c.Retry.Interval < 0 || c.Retry.LeaseInterval < 0 || c.Retry.SampleInterval < 0 {
		return fmt.Errorf("retry intervals must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// RetryPolicy converts the retry section for the reconcilers.
func (c *Config) RetryPolicy() reconcile.Retry {
	return reconcile.Retry{
		Attempts:       c.Retry.Attempts,
		Interval:       c.Retry.Interval,
		LeaseInterval:  c.Retry.LeaseInterval,
		SampleInterval: c.Retry.SampleInterval,
	}
}

// Logger builds the root logger.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
