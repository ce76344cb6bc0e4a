package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Client         ClientConfig         `mapstructure:"client"`
	Auth           AuthConfig           `mapstructure:"auth"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Server         ServerConfig         `mapstructure:"server"`
}

type ClientConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay       time.Duration `mapstructure:"max_retry_delay"`
	UserAgent           string        `mapstructure:"user_agent"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

type AuthConfig struct {
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	ExpiryBuffer time.Duration `mapstructure:"expiry_buffer"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// ServerConfig configures the stand-in bank served by cmd/fakebank.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	RateLimit       int           `mapstructure:"rate_limit"`
	Latency         time.Duration `mapstructure:"latency"`
	FailureRate     float64       `mapstructure:"failure_rate"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// LoadOptions points Load at an explicit file and/or command-line flags.
type LoadOptions struct {
	File  string
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base-url":     "client.base_url",
	"timeout":      "client.timeout",
	"max-retries":  "client.max_retries",
	"retry-delay":  "client.retry_delay",
	"log-level":    "observability.log_level",
	"log-format":   "observability.log_format",
	"port":         "server.port",
	"latency":      "server.latency",
	"failure-rate": "server.failure_rate",
	"rate-limit":   "server.rate_limit",
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BANKCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.bankclient")

		// Config file is optional
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := opts.Flags.Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("observability.log_level", "debug")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static, Unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	cfg.Normalize()
	return &cfg
}

// Normalize trims the trailing slash from the base URL.
func (c *Config) Normalize() {
	c.Client.BaseURL = strings.TrimRight(strings.TrimSpace(c.Client.BaseURL), "/")
}

func (c *Config) Validate() error {
	var errs []error

	if err := validateBaseURL(c.Client.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Client.Timeout < time.Second || c.Client.Timeout > 300*time.Second {
		errs = append(errs, fmt.Errorf("client.timeout must be between 1s and 300s, got %s", c.Client.Timeout))
	}
	if c.Client.MaxRetries < 0 || c.Client.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("client.max_retries must be between 0 and 10, got %d", c.Client.MaxRetries))
	}
	if c.Client.RetryDelay < 100*time.Millisecond || c.Client.RetryDelay > 10*time.Second {
		errs = append(errs, fmt.Errorf("client.retry_delay must be between 100ms and 10s, got %s", c.Client.RetryDelay))
	}
	if c.Client.MaxRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("client.max_retry_delay cannot be negative"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be positive"))
	}
	if c.Auth.ExpiryBuffer < 0 {
		errs = append(errs, fmt.Errorf("auth.expiry_buffer cannot be negative"))
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			errs = append(errs, fmt.Errorf("circuit_breaker.failure_ratio must be in (0, 1]"))
		}
		if c.CircuitBreaker.OpenTimeout <= 0 {
			errs = append(errs, fmt.Errorf("circuit_breaker.open_timeout must be positive"))
		}
		// A single call's attempts must not be able to trip the breaker.
		if int64(c.CircuitBreaker.MinRequests) <= int64(c.Client.MaxRetries)+1 {
			errs = append(errs, fmt.Errorf("circuit_breaker.min_requests must exceed client.max_retries+1 (%d), got %d",
				c.Client.MaxRetries+1, c.CircuitBreaker.MinRequests))
		}
	}
	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("observability.log_level must be DEBUG, INFO, WARN, or ERROR, got %q", c.Observability.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.FailureRate < 0 || c.Server.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("server.failure_rate must be between 0 and 1"))
	}
	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("server.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("client.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("client.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client.base_url must start with http:// or https://, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("client.base_url must include a host")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Client defaults
	v.SetDefault("client.base_url", "http://localhost:8123")
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.max_retries", 3)
	v.SetDefault("client.retry_delay", "1s")
	v.SetDefault("client.max_retry_delay", "0s")
	v.SetDefault("client.user_agent", "bankclient/1.0")
	v.SetDefault("client.max_idle_conns", 100)
	v.SetDefault("client.max_idle_conns_per_host", 30)
	v.SetDefault("client.idle_conn_timeout", "60s")

	// Auth defaults
	v.SetDefault("auth.username", "modern_client")
	v.SetDefault("auth.password", "secure_password")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.expiry_buffer", "5m")

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.min_requests", 20)
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("circuit_breaker.open_timeout", "30s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "console")
	v.SetDefault("observability.enable_tracing", false)
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")

	// Stand-in bank defaults
	v.SetDefault("server.port", 8123)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.jwt_secret", "local-development-signing-secret-0123456789")
	v.SetDefault("server.token_ttl", "1h")
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.latency", "0s")
	v.SetDefault("server.failure_rate", 0.0)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
}
