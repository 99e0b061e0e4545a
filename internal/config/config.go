// Package config loads server configuration from an optional YAML file
// with environment variable overrides applied on top. Environment always
// wins, which keeps deployments twelve-factor while local development can
// still use a checked-in config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener and its middleware.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR"`
	AllowedOrigins  string        `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
	RateLimitRPS    int           `yaml:"rate_limit_rps" env:"SERVER_RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// SupabaseConfig configures the hosted store and identity provider. When
// URL is empty the server runs against the in-memory store with no
// authentication, which is the local development mode.
type SupabaseConfig struct {
	URL        string        `yaml:"url" env:"SUPABASE_URL"`
	AnonKey    string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	ServiceKey string        `yaml:"service_key" env:"SUPABASE_SERVICE_KEY"`
	JWTSecret  string        `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	Deployment string        `yaml:"deployment" env:"SUPABASE_DEPLOYMENT"`
	UserID     string        `yaml:"user_id" env:"SUPABASE_USER_ID"`
	Timeout    time.Duration `yaml:"timeout" env:"SUPABASE_TIMEOUT"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and then applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envdecode only fills fields whose variables are set, so file values
// survive; defaults cover the case where neither source provided one.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.AllowedOrigins == "" {
		cfg.Server.AllowedOrigins = "*"
	}
	if cfg.Server.RateLimitRPS <= 0 {
		cfg.Server.RateLimitRPS = 50
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 100
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Supabase.Deployment == "" {
		cfg.Supabase.Deployment = "default-brokerage"
	}
	if cfg.Supabase.Timeout <= 0 {
		cfg.Supabase.Timeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Supabase.URL != "" && c.Supabase.ServiceKey == "" {
		return fmt.Errorf("supabase service key is required when a supabase url is set")
	}
	if c.Supabase.URL != "" && c.Supabase.UserID == "" {
		return fmt.Errorf("supabase user id is required when a supabase url is set")
	}
	return nil
}

// Origins splits the configured allowed origins into a list.
func (c *ServerConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// UseSupabase reports whether the hosted store is configured.
func (c *SupabaseConfig) UseSupabase() bool {
	return c.URL != ""
}
