// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for chime.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML as a string
// like "30s" or "5m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// StorageConfig locates the sqlite database and controls history
// retention.
type StorageConfig struct {
	Path string `yaml:"path"`

	// RetentionDays bounds how long execution records are kept. Zero
	// keeps them forever.
	RetentionDays int `yaml:"retention_days"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Bind            string     `yaml:"bind"`
	Auth            AuthConfig `yaml:"auth"`
	ReadTimeout     Duration   `yaml:"read_timeout"`
	WriteTimeout    Duration   `yaml:"write_timeout"`
	ShutdownTimeout Duration   `yaml:"shutdown_timeout"`
}

// AuthConfig configures authentication for admin endpoints. Admin routes
// are not mounted at all when no method is configured.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// NotifyConfig holds the outbound delivery endpoints and limits.
type NotifyConfig struct {
	MessageURL    string   `yaml:"message_url"`
	MonitorURL    string   `yaml:"monitor_url"`
	LanguageCode  string   `yaml:"language_code"`
	Timeout       Duration `yaml:"timeout"`
	RatePerSecond float64  `yaml:"rate_per_second"`
	Burst         int      `yaml:"burst"`
}

// Defaults fills zero values with sensible defaults.
func (c *Config) Defaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "chime.db"
	}
	if c.Server.Bind == "" {
		c.Server.Bind = "127.0.0.1:8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(5 * time.Second)
	}
	if c.Notify.LanguageCode == "" {
		c.Notify.LanguageCode = "es_mx"
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = Duration(30 * time.Second)
	}
	if c.Notify.Burst <= 0 {
		c.Notify.Burst = 1
	}
}
