// Package config provides configuration loading, defaults, and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taskwire/taskwire/internal/util/apierr"
)

// Bounds enforced by Validate. Out-of-range values fail fast at load time.
const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 300
	MinRetries        = 0
	MaxRetries        = 10
	MinCacheTTL       = time.Second
	MaxCacheTTL       = 7 * 24 * time.Hour
)

const (
	defaultTimeoutSeconds      = 30
	defaultRetries             = 3
	defaultProjectsTTLSeconds  = 300
	defaultTasksTTLSeconds     = 60
	defaultStaleIfErrorSeconds = 3600
	defaultMaxMemoryEntries    = 1024
)

type Config struct {
	API    APIConfig   `mapstructure:"api"`
	Cache  CacheConfig `mapstructure:"cache"`
	Auth   AuthConfig  `mapstructure:"auth"`
	Log    LogConfig   `mapstructure:"log"`
	Output string      `mapstructure:"output"` // table | json | yaml
}

type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Retries        int    `mapstructure:"retries"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
	Dir                 string `mapstructure:"dir"`
	ProjectsTTLSeconds  int    `mapstructure:"projects_ttl_seconds"`
	TasksTTLSeconds     int    `mapstructure:"tasks_ttl_seconds"`
	StaleIfErrorSeconds int    `mapstructure:"stale_if_error_seconds"`
	MaxMemoryEntries    int    `mapstructure:"max_memory_entries"`
}

func (c CacheConfig) ProjectsTTL() time.Duration {
	return time.Duration(c.ProjectsTTLSeconds) * time.Second
}

func (c CacheConfig) TasksTTL() time.Duration {
	return time.Duration(c.TasksTTLSeconds) * time.Second
}

func (c CacheConfig) StaleIfError() time.Duration {
	return time.Duration(c.StaleIfErrorSeconds) * time.Second
}

type AuthConfig struct {
	TokenPath    string `mapstructure:"token_path"`
	AccessToken  string `mapstructure:"access_token"` // explicit token, bypasses the store
	ClientID     string `mapstructure:"client_id"`
	AuthorizeURL string `mapstructure:"authorize_url"`
	TokenURL     string `mapstructure:"token_url"`
	Scopes       string `mapstructure:"scopes"`
	RedirectPort int    `mapstructure:"redirect_port"` // 0 picks an ephemeral loopback port
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

// StateDir is the base directory for cache, credentials and logs.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "taskwire")
	}
	return filepath.Join(home, ".taskwire")
}

// DefaultConfigPath returns the config file location honored by Load when no
// explicit path is given.
func DefaultConfigPath() string {
	if explicit := strings.TrimSpace(os.Getenv("TASKWIRE_CONFIG")); explicit != "" {
		return explicit
	}
	return filepath.Join(StateDir(), "config.yaml")
}

// Load reads configuration from the given file (optional), environment
// variables prefixed TASKWIRE_, and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("TASKWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "")
	viper.SetDefault("api.timeout_seconds", defaultTimeoutSeconds)
	viper.SetDefault("api.retries", defaultRetries)

	viper.SetDefault("cache.dir", filepath.Join(StateDir(), "cache"))
	viper.SetDefault("cache.projects_ttl_seconds", defaultProjectsTTLSeconds)
	viper.SetDefault("cache.tasks_ttl_seconds", defaultTasksTTLSeconds)
	viper.SetDefault("cache.stale_if_error_seconds", defaultStaleIfErrorSeconds)
	viper.SetDefault("cache.max_memory_entries", defaultMaxMemoryEntries)

	viper.SetDefault("auth.token_path", filepath.Join(StateDir(), "credentials.json"))
	viper.SetDefault("auth.access_token", "")
	viper.SetDefault("auth.client_id", "")
	viper.SetDefault("auth.authorize_url", "")
	viper.SetDefault("auth.token_url", "")
	viper.SetDefault("auth.scopes", "projects:read projects:write tasks:read tasks:write")
	viper.SetDefault("auth.redirect_port", 0)

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.to_file", false)
	viper.SetDefault("log.file_path", "")

	viper.SetDefault("output", "table")
}

// Validate checks configured values against the documented bounds.
func (c *Config) Validate() error {
	if c.API.TimeoutSeconds < MinTimeoutSeconds || c.API.TimeoutSeconds > MaxTimeoutSeconds {
		return apierr.NewValidation("api.timeout_seconds", "must be between %d and %d, got %d",
			MinTimeoutSeconds, MaxTimeoutSeconds, c.API.TimeoutSeconds)
	}
	if c.API.Retries < MinRetries || c.API.Retries > MaxRetries {
		return apierr.NewValidation("api.retries", "must be between %d and %d, got %d",
			MinRetries, MaxRetries, c.API.Retries)
	}
	if err := validateTTL("cache.projects_ttl_seconds", c.Cache.ProjectsTTL()); err != nil {
		return err
	}
	if err := validateTTL("cache.tasks_ttl_seconds", c.Cache.TasksTTL()); err != nil {
		return err
	}
	if c.Cache.StaleIfErrorSeconds < 0 {
		return apierr.NewValidation("cache.stale_if_error_seconds", "must be non-negative, got %d",
			c.Cache.StaleIfErrorSeconds)
	}
	if c.Cache.StaleIfError() > MaxCacheTTL {
		return apierr.NewValidation("cache.stale_if_error_seconds", "must not exceed 7 days, got %d",
			c.Cache.StaleIfErrorSeconds)
	}
	if c.Cache.MaxMemoryEntries <= 0 {
		return apierr.NewValidation("cache.max_memory_entries", "must be positive, got %d",
			c.Cache.MaxMemoryEntries)
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return apierr.NewValidation("cache.dir", "must not be empty")
	}
	if c.Auth.RedirectPort < 0 || c.Auth.RedirectPort > 65535 {
		return apierr.NewValidation("auth.redirect_port", "must be between 0 and 65535, got %d",
			c.Auth.RedirectPort)
	}
	switch strings.ToLower(strings.TrimSpace(c.Output)) {
	case "table", "json", "yaml":
	default:
		return apierr.NewValidation("output", "must be one of: table/json/yaml, got %q", c.Output)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return apierr.NewValidation("log.level", "must be one of: debug/info/warn/error, got %q", c.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "console", "json":
	default:
		return apierr.NewValidation("log.format", "must be one of: console/json, got %q", c.Log.Format)
	}
	return nil
}

func validateTTL(field string, ttl time.Duration) error {
	if ttl < MinCacheTTL || ttl > MaxCacheTTL {
		return apierr.NewValidation(field, "must be between 1s and 7d, got %s", ttl)
	}
	return nil
}
