package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hpn/preaid-gateway/internal/domain"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "PREAID"

	// EnvJWTSecret is read when auth.jwt_secret is not configured.
	EnvJWTSecret = "JWT_SECRET"
)

// loadConfig loads the configuration from environment variables and files.
// Priority order (highest to lowest):
// 1. Provider credential env vars (GEMINI_API_KEY, OPENAI_API_KEY, ...)
// 2. Environment variables (prefixed with PREAID_)
// 3. config.yaml
// 4. Default values
func loadConfig(configPath string) (*Configuration, *viper.Viper, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure Viper
	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	// Add config search paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/preaid")
		v.AddConfigPath("$HOME/.preaid")
	}

	// Enable environment variable override
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintf(os.Stderr, "[CONFIG] Config file not found, using defaults and environment variables\n")
		} else {
			return nil, nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
	}

	// Unmarshal configuration
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	loadProviderCredentialsFromEnv(&cfg)

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv(EnvJWTSecret)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3004)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.request_timeout_seconds", 100)

	// Provider defaults, in fallback order
	providers := make([]map[string]any, 0, len(domain.KnownProviders()))
	for _, name := range domain.KnownProviders() {
		providers = append(providers, map[string]any{"name": string(name)})
	}
	v.SetDefault("providers", providers)

	// Dispatch defaults
	v.SetDefault("dispatch.attempt_timeout_seconds", 15)
	v.SetDefault("dispatch.max_response_bytes", 1<<20)

	// Advice defaults
	v.SetDefault("advice.min_length", 50)
	v.SetDefault("advice.primary.temperature", domain.DefaultTemperature)
	v.SetDefault("advice.primary.max_tokens", domain.DefaultMaxTokens)
	v.SetDefault("advice.primary.top_p", domain.DefaultTopP)
	v.SetDefault("advice.primary.top_k", domain.DefaultTopK)
	v.SetDefault("advice.retry.temperature", 0.6)
	v.SetDefault("advice.retry.max_tokens", 1500)

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "data/preaid.db")
	v.SetDefault("history.retention_days", 90)
	v.SetDefault("history.prune_schedule", "0 3 * * *")
	v.SetDefault("history.list_limit", 50)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_seconds", 300)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// CredentialEnvName returns the environment variable that holds a provider's
// credential, e.g. GEMINI_API_KEY.
func CredentialEnvName(p ProviderConfig) string {
	if p.CredentialEnv != "" {
		return p.CredentialEnv
	}
	return strings.ToUpper(string(p.Name)) + "_API_KEY"
}

// loadProviderCredentialsFromEnv fills provider credentials from their env
// vars. A set env var wins over the file value.
func loadProviderCredentialsFromEnv(cfg *Configuration) {
	for i := range cfg.Providers {
		if value := strings.TrimSpace(os.Getenv(CredentialEnvName(cfg.Providers[i]))); value != "" {
			cfg.Providers[i].APIKey = value
		}
	}
}
