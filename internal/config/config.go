// Package config loads and validates the media-archiver service configuration.
// Configuration comes from a YAML file with environment variable overrides,
// so deployments can tune behavior without editing files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeoutSeconds is the default HTTP read timeout in seconds
	DefaultReadTimeoutSeconds = 10
	// DefaultWriteTimeoutSeconds is the default HTTP write timeout in seconds
	DefaultWriteTimeoutSeconds = 60
	// DefaultPolicyMaxBytes is the default policy ceiling for incoming files (50 MiB)
	DefaultPolicyMaxBytes = 50 << 20
	// DefaultURLCacheTTL keeps cached URLs just under the provider's 24h signed-URL expiry
	DefaultURLCacheTTL = 23 * time.Hour
)

type Config struct {
	Debug    bool           `yaml:"debug"` // Controls log level and format
	Server   ServerConfig   `yaml:"server"`
	Archiver ArchiverConfig `yaml:"archiver"`
	Provider ProviderConfig `yaml:"provider"`
	Manifest ManifestConfig `yaml:"manifest"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8084"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 60s
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type ArchiverConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RouteTablePath string        `yaml:"route_table_path"`
	StagingDir     string        `yaml:"staging_dir"`
	PolicyMaxBytes int64         `yaml:"policy_max_bytes"`
	AllowFallback  bool          `yaml:"allow_fallback"`   // Enable webhook delivery when the bot path is unavailable
	SweepSchedule  string        `yaml:"sweep_schedule"`   // Cron spec for the staging-dir sweep; empty disables it
	SweepOlderThan time.Duration `yaml:"sweep_older_than"` // Minimum age before a staged file is swept
}

type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	BotToken   string        `yaml:"bot_token"`
	WebhookURL string        `yaml:"webhook_url"` // Pre-provisioned fallback delivery endpoint
	Timeout    time.Duration `yaml:"timeout"`
}

type ManifestConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"` // Empty disables the rehydration URL cache
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	URLCacheTTL time.Duration `yaml:"url_cache_ttl"`
}

type AuthConfig struct {
	APIToken  string `yaml:"api_token"`  // Static bearer token for the HTTP facade
	JWTSecret string `yaml:"jwt_secret"` // Optional: accept HMAC JWTs instead of the static token
}

// Validate checks if the server configuration is valid and sets defaults.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		c.Address = ":8084"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Archiver.RouteTablePath == "" {
		return errors.New("archiver.route_table_path is required")
	}
	if c.Manifest.DSN == "" {
		return errors.New("manifest.dsn is required")
	}
	switch c.Manifest.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("manifest.driver must be sqlite3 or postgres, got %q", c.Manifest.Driver)
	}
	if c.Archiver.PolicyMaxBytes <= 0 {
		return fmt.Errorf("archiver.policy_max_bytes must be positive, got %d", c.Archiver.PolicyMaxBytes)
	}
	if c.Archiver.AllowFallback && c.Provider.WebhookURL == "" {
		return errors.New("provider.webhook_url is required when archiver.allow_fallback is true")
	}
	return nil
}

// setDefaults sets default values for configuration fields
func setDefaults(cfg *Config) {
	if cfg.Manifest.Driver == "" {
		cfg.Manifest.Driver = "sqlite3"
	}
	if cfg.Manifest.DSN == "" && cfg.Manifest.Driver == "sqlite3" {
		cfg.Manifest.DSN = "data/manifest.db"
	}
	if cfg.Archiver.StagingDir == "" {
		cfg.Archiver.StagingDir = os.TempDir()
	}
	if cfg.Archiver.PolicyMaxBytes == 0 {
		cfg.Archiver.PolicyMaxBytes = DefaultPolicyMaxBytes
	}
	if cfg.Archiver.SweepOlderThan == 0 {
		cfg.Archiver.SweepOlderThan = time.Hour
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Redis.URLCacheTTL == 0 {
		cfg.Redis.URLCacheTTL = DefaultURLCacheTTL
	}
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("ARCHIVER_ENABLED"); v != "" {
		cfg.Archiver.Enabled = parseBool(v)
	}
	if v := os.Getenv("ARCHIVER_ALLOW_FALLBACK"); v != "" {
		cfg.Archiver.AllowFallback = parseBool(v)
	}
	if v := os.Getenv("ARCHIVER_ROUTE_TABLE"); v != "" {
		cfg.Archiver.RouteTablePath = v
	}
	if v := os.Getenv("ARCHIVER_POLICY_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Archiver.PolicyMaxBytes = n
		}
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_BOT_TOKEN"); v != "" {
		cfg.Provider.BotToken = v
	}
	if v := os.Getenv("PROVIDER_WEBHOOK_URL"); v != "" {
		cfg.Provider.WebhookURL = v
	}
	if v := os.Getenv("MANIFEST_DSN"); v != "" {
		cfg.Manifest.DSN = v
	}
	if v := os.Getenv("MANIFEST_DRIVER"); v != "" {
		cfg.Manifest.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Auth.APIToken = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server config validation: %w", err)
	}

	if port := os.Getenv("ARCHIVER_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
