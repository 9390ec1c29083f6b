package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateBaseURL validates the URL clients use to reach the server
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: host is missing", raw)
	}
	return nil
}

// ValidateStorageDriver validates the resource store driver
func (v *Validator) ValidateStorageDriver(driver, path string) error {
	switch driver {
	case "memory":
		return nil
	case "sqlite":
		if path == "" {
			return fmt.Errorf("storage path is required for the sqlite driver")
		}
		return nil
	}
	return fmt.Errorf("invalid storage driver: %s (must be one of: memory, sqlite)", driver)
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSampleRatio validates a trace sampling ratio
func (v *Validator) ValidateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1, got %f", ratio)
	}
	return nil
}

// ValidateMetricsPath validates the metrics endpoint path
func (v *Validator) ValidateMetricsPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", path)
	}
	for _, reserved := range []string{"/component", "/resource"} {
		if path == reserved || strings.HasPrefix(path, reserved+"/") {
			return fmt.Errorf("metrics path %q collides with %s", path, reserved)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.shutdown_timeout must be >= 0"))
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.rate_limit_per_minute must be >= 0"))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errors = append(errors, fmt.Errorf("server.max_body_bytes must be >= 0"))
	}
	if err := v.ValidateBaseURL(cfg.Server.BaseURL); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}

	if err := v.ValidateStorageDriver(cfg.Storage.Driver, cfg.Storage.Path); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 || cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size and logging.max_age must be >= 0"))
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateMetricsPath(cfg.Metrics.Path); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.ServiceName == "" {
			errors = append(errors, fmt.Errorf("tracing.service_name is required when tracing is enabled"))
		}
		if err := v.ValidateSampleRatio(cfg.Tracing.SampleRatio); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Client.Timeout < 0 {
		errors = append(errors, fmt.Errorf("client.timeout must be >= 0"))
	}

	if cfg.Hooks.Enabled {
		for i, hook := range cfg.Hooks.Hooks {
			if err := v.ValidateHook(hook); err != nil {
				errors = append(errors, fmt.Errorf("hooks[%d]: %w", i, err))
			}
		}
	}

	return errors
}

var hookEvents = []string{"daemon:startup", "daemon:shutdown", "resource:created", "resource:deleted"}

// ValidateHook validates a single hook definition
func (v *Validator) ValidateHook(hook HookConfig) error {
	if strings.TrimSpace(hook.Script) == "" {
		return fmt.Errorf("script is required")
	}
	if hook.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	for _, event := range hookEvents {
		if hook.Event == event {
			return nil
		}
	}
	return fmt.Errorf("invalid event: %q (must be one of: %s)", hook.Event, strings.Join(hookEvents, ", "))
}
