// Package config provides configuration loading for mindmapd.
//
// Configuration is read from an optional YAML file and overridden by
// MINDMAPD_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete mindmapd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Storage   StorageConfig   `koanf:"storage"`
	News      NewsConfig      `koanf:"news"`
	Auth      AuthConfig      `koanf:"auth"`
	Events    EventsConfig    `koanf:"events"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
	MCQ       MCQConfig       `koanf:"mcq"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	APIKey      Secret        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	RateLimit   float64       `koanf:"rate_limit"` // requests per second
	Burst       int           `koanf:"burst"`
}

// WorkflowConfig tunes the generation workflow.
type WorkflowConfig struct {
	ParallelResearch bool `koanf:"parallel_research"`
}

// StorageConfig selects the saved-generation backend and the data directory
// for file-backed stores.
type StorageConfig struct {
	Backend       string `koanf:"backend"` // "file" or "redis"
	DataDir       string `koanf:"data_dir"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword Secret `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
}

// NewsConfig configures the newsdata.io proxy.
type NewsConfig struct {
	APIKey            Secret        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Country           string        `koanf:"country"`
	Language          string        `koanf:"language"`
	ExcludeCategories string        `koanf:"exclude_categories"`
	Timeout           time.Duration `koanf:"timeout"`
}

// AuthConfig configures Google sign-in verification.
type AuthConfig struct {
	GoogleClientID string   `koanf:"google_client_id"`
	AllowedEmails  []string `koanf:"allowed_emails"`
	CertsURL       string   `koanf:"certs_url"`
}

// EventsConfig configures workflow progress publishing. Empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled       bool    `koanf:"enabled"`
	Endpoint      string  `koanf:"endpoint"`
	Protocol      string  `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure      bool    `koanf:"insecure"`
	TLSSkipVerify bool    `koanf:"tls_skip_verify"`
	ServiceName   string  `koanf:"service_name"`
	SampleRate    float64 `koanf:"sample_rate"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// MCQConfig configures MCQ generation.
type MCQConfig struct {
	ReferenceFile  string `koanf:"reference_file"`
	ReferenceLimit int    `koanf:"reference_limit"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.LLM.Provider != "openai" {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported (supported: openai)", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.max_retries cannot be negative"))
	}
	if c.LLM.RateLimit <= 0 || c.LLM.Burst <= 0 {
		errs = append(errs, errors.New("llm.rate_limit and llm.burst must be positive"))
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the file backend"))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be 'file' or 'redis', got %q", c.Storage.Backend))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is invalid", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.MCQ.ReferenceLimit < 0 {
		errs = append(errs, errors.New("mcq.reference_limit cannot be negative"))
	}

	return errors.Join(errs...)
}
