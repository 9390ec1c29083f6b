package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main RESTx configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Client  ClientConfig  `json:"client" yaml:"client" mapstructure:"client"`
	Hooks   HooksConfig   `json:"hooks" yaml:"hooks" mapstructure:"hooks"`

	// Data directory
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string `json:"host" yaml:"host" mapstructure:"host"`
	Port               int    `json:"port" yaml:"port" mapstructure:"port"`
	ShutdownTimeout    int    `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	BaseURL            string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxBodyBytes       int64  `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// StorageConfig selects where resources are kept
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"` // memory, sqlite
	Path   string `json:"path" yaml:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	File      string `json:"file" yaml:"file" mapstructure:"file"`
	Console   bool   `json:"console" yaml:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" yaml:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" yaml:"max_age" mapstructure:"max_age"`    // days
	Compress  bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" yaml:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" yaml:"audit_file" mapstructure:"audit_file"` // empty disables the audit log
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// ClientConfig holds settings for the CLI client commands
type ClientConfig struct {
	Timeout int `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // seconds
}

// HooksConfig holds shell hooks run on daemon and resource events
type HooksConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Hooks   []HookConfig `json:"hooks" yaml:"hooks" mapstructure:"hooks"`
}

// HookConfig is a single hook. Event is one of daemon:startup,
// daemon:shutdown, resource:created, resource:deleted.
type HookConfig struct {
	ID      string `json:"id" yaml:"id" mapstructure:"id"`
	Event   string `json:"event" yaml:"event" mapstructure:"event"`
	Script  string `json:"script" yaml:"script" mapstructure:"script"`
	Timeout int    `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // seconds, 0 means none
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8001,
			ShutdownTimeout:    30,
			BaseURL:            "http://localhost:8001",
			RateLimitPerMinute: 0,
			MaxBodyBytes:       10 << 20,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "restx",
			SampleRatio: 1.0,
		},
		Client: ClientConfig{
			Timeout: 30,
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
	errs := NewValidator().ValidateConfig(c)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
