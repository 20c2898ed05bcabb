// Package config loads gateway settings with viper from config.yaml, PREAID_* env
// overrides and the provider credential variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/hpn/preaid-gateway/internal/domain"
	"github.com/hpn/preaid-gateway/internal/history"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// Server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Providers in fallback order
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Dispatch configuration
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Advice policy configuration
	Advice AdviceConfig `json:"advice" mapstructure:"advice"`

	// Consultation history configuration
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Token verification configuration
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Response cache configuration
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`

	// RequestTimeout bounds one advice request including the retry.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

// ProviderConfig is one entry of the provider list.
type ProviderConfig struct {
	Name     domain.ProviderName `json:"name" mapstructure:"name"`
	Endpoint string              `json:"endpoint" mapstructure:"endpoint"`
	Model    string              `json:"model" mapstructure:"model"`

	// APIKey is the credential. Prefer CredentialEnv in production.
	APIKey string `json:"-" mapstructure:"api_key"`

	// CredentialEnv names the environment variable holding the credential.
	// Defaults to <NAME>_API_KEY.
	CredentialEnv string `json:"credential_env" mapstructure:"credential_env"`

	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled" mapstructure:"enabled"`
}

// IsEnabled reports whether the provider takes part in fallback.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Descriptor converts the entry to a domain descriptor.
func (p ProviderConfig) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Name:       p.Name,
		Credential: p.APIKey,
		Endpoint:   p.Endpoint,
		Model:      p.Model,
	}
}

// DispatchConfig holds dispatcher settings.
type DispatchConfig struct {
	AttemptTimeoutSeconds int   `json:"attempt_timeout_seconds" mapstructure:"attempt_timeout_seconds"`
	MaxResponseBytes      int64 `json:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// AttemptTimeout returns the per-attempt deadline.
func (d DispatchConfig) AttemptTimeout() time.Duration {
	return time.Duration(d.AttemptTimeoutSeconds) * time.Second
}

// AdviceConfig holds the caller-level retry policy.
type AdviceConfig struct {
	MinLength int                      `json:"min_length" mapstructure:"min_length"`
	Primary   domain.GenerationOptions `json:"primary" mapstructure:"primary"`
	Retry     domain.GenerationOptions `json:"retry" mapstructure:"retry"`
}

// HistoryConfig holds consultation history settings.
type HistoryConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	DBPath        string `json:"db_path" mapstructure:"db_path"`
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
	PruneSchedule string `json:"prune_schedule" mapstructure:"prune_schedule"`
	ListLimit     int    `json:"list_limit" mapstructure:"list_limit"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string `json:"-" mapstructure:"jwt_secret"`
	Issuer    string `json:"issuer" mapstructure:"issuer"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	TTLSeconds int  `json:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configViper    *viper.Viper
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance loaded from the
// default search paths.
func GetConfig() (*Configuration, error) {
	return GetConfigWithPath("")
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
// An empty path searches the default locations.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configViper, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configViper = nil
	configErr = nil
}

// Validate validates the configuration and returns an error if required fields are missing.
func (c *Configuration) Validate() error {
	var validationErrors []string

	// Validate server configuration
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		validationErrors = append(validationErrors, "server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		validationErrors = append(validationErrors, "server.request_timeout_seconds cannot be negative")
	}

	// Validate providers
	seen := make(map[domain.ProviderName]bool)
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].name is required", i))
		case !domain.IsKnownProvider(p.Name):
			validationErrors = append(validationErrors, fmt.Sprintf(
				"providers[%d].name '%s' is invalid, must be one of: %s", i, p.Name, knownProviderList()))
		case seen[p.Name]:
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].name '%s' is duplicated", i, p.Name))
		}
		seen[p.Name] = true
	}

	// Validate dispatch configuration
	if c.Dispatch.AttemptTimeoutSeconds < 0 {
		validationErrors = append(validationErrors, "dispatch.attempt_timeout_seconds cannot be negative")
	}
	if c.Dispatch.MaxResponseBytes <= 0 {
		validationErrors = append(validationErrors, "dispatch.max_response_bytes must be positive")
	}

	if c.Advice.MinLength < 0 {
		validationErrors = append(validationErrors, "advice.min_length cannot be negative")
	}

	// Validate history configuration
	if c.History.Enabled {
		if c.History.DBPath == "" {
			validationErrors = append(validationErrors, (&MissingKeyError{Key: "history.db_path"}).Error())
		}
		if c.Auth.JWTSecret == "" {
			validationErrors = append(validationErrors, (&MissingKeyError{Key: "auth.jwt_secret"}).Error()+" when history is enabled")
		}
		if c.History.RetentionDays < 0 {
			validationErrors = append(validationErrors, "history.retention_days cannot be negative")
		}
		if c.History.PruneSchedule != "" {
			if err := history.ValidateSchedule(c.History.PruneSchedule); err != nil {
				validationErrors = append(validationErrors, "history.prune_schedule: "+err.Error())
			}
		}
	}

	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		validationErrors = append(validationErrors, "cache.ttl_seconds must be positive when cache is enabled")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		validationErrors = append(validationErrors, "metrics.path must start with '/'")
	}

	// Validate logging configuration
	if c.Logging.Level != "" {
		if _, err := ParseLogLevel(c.Logging.Level); err != nil {
			validationErrors = append(validationErrors, err.Error())
		}
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		validationErrors = append(validationErrors, (&InvalidValueError{
			Key:           "logging.format",
			Value:         c.Logging.Format,
			AllowedValues: []string{"json", "text"},
		}).Error())
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}

	return nil
}

// ProviderDescriptors returns the enabled providers in fallback order.
func (c *Configuration) ProviderDescriptors() []domain.ProviderDescriptor {
	descs := make([]domain.ProviderDescriptor, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.IsEnabled() {
			descs = append(descs, p.Descriptor())
		}
	}
	return descs
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &InvalidValueError{
			Key:           "logging.level",
			Value:         level,
			AllowedValues: []string{"debug", "info", "warn", "error"},
		}
	}
}

func knownProviderList() string {
	names := domain.KnownProviders()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
