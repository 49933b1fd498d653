package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if !logLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Errorf("config: unknown log level %q", cfg.Log.Level))
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("config: unknown log format %q", cfg.Log.Format))
	}

	if cfg.Storage.Path == "" {
		errs = append(errs, errors.New("config: storage.path is required"))
	}
	if cfg.Storage.RetentionDays < 0 {
		errs = append(errs, errors.New("config: storage.retention_days must not be negative"))
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.Server.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid server.bind %q: %w", cfg.Server.Bind, err))
	}

	if cfg.Server.Auth.BasicUser != "" && cfg.Server.Auth.BasicPass == "" {
		errs = append(errs, errors.New("config: server.auth.basic_user set without basic_pass"))
	}
	if cfg.Server.Auth.BasicPass != "" && cfg.Server.Auth.BasicUser == "" {
		errs = append(errs, errors.New("config: server.auth.basic_pass set without basic_user"))
	}

	errs = append(errs, validateEndpoint("notify.message_url", cfg.Notify.MessageURL)...)
	errs = append(errs, validateEndpoint("notify.monitor_url", cfg.Notify.MonitorURL)...)
	if cfg.Notify.RatePerSecond < 0 {
		errs = append(errs, errors.New("config: notify.rate_per_second must not be negative"))
	}

	return errors.Join(errs...)
}

// validateEndpoint accepts an empty URL (the corresponding job kind is
// simply unusable) but rejects a malformed one.
func validateEndpoint(field, raw string) []error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("config: invalid %s: %w", field, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("config: %s must be http or https, got %q", field, u.Scheme)}
	}
	if u.Host == "" {
		return []error{fmt.Errorf("config: %s has no host", field)}
	}
	return nil
}
