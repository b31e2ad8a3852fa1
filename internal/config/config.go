// Package config loads settings from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{"gamedex.yaml", "gamedex.yml", "config.yaml"}

// Config is the complete application configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	RAWG     RAWGConfig     `koanf:"rawg"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Sessions SessionsConfig `koanf:"sessions"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	StaticDir       string        `koanf:"static_dir"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// RAWGConfig configures the upstream games API
type RAWGConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst     int           `koanf:"burst" validate:"gte=1"`
}

// CatalogConfig holds list defaults and the date bounds used to fill an
// open side of a date filter
type CatalogConfig struct {
	DefaultPageSize int           `koanf:"default_page_size" validate:"min=1,max=40"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"min=1,max=40,gtefield=DefaultPageSize"`
	DefaultSort     string        `koanf:"default_sort" validate:"oneof=name rating released added"`
	EarliestDate    string        `koanf:"earliest_date" validate:"datetime=2006-01-02"`
	LatestDate      string        `koanf:"latest_date" validate:"datetime=2006-01-02"`
	OptionsTTL      time.Duration `koanf:"options_ttl" validate:"gte=0"`
}

type SessionsConfig struct {
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	SweepInterval  time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	DetailsTimeout time.Duration `koanf:"details_timeout" validate:"gt=0"`
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			StaticDir:       "../frontend/dist",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./gamedex.db",
		},
		RAWG: RAWGConfig{
			BaseURL:   "https://api.rawg.io/api",
			Timeout:   15 * time.Second,
			RateLimit: 5,
			Burst:     5,
		},
		Catalog: CatalogConfig{
			DefaultPageSize: 20,
			MaxPageSize:     40,
			DefaultSort:     "added",
			EarliestDate:    "1970-01-01",
			LatestDate:      "2099-12-31",
			OptionsTTL:      6 * time.Hour,
		},
		Sessions: SessionsConfig{
			IdleTimeout:    30 * time.Minute,
			SweepInterval:  time.Minute,
			DetailsTimeout: 15 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"http://localhost:*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps environment variables to config paths
var envMappings = map[string]string{
	"port":                "server.port",
	"host":                "server.host",
	"static_dir":          "server.static_dir",
	"shutdown_timeout":    "server.shutdown_timeout",
	"db_path":             "database.path",
	"rawg_base_url":       "rawg.base_url",
	"rawg_api_key":        "rawg.api_key",
	"rawg_timeout":        "rawg.timeout",
	"rawg_rate_limit":     "rawg.rate_limit",
	"rawg_burst":          "rawg.burst",
	"default_page_size":   "catalog.default_page_size",
	"max_page_size":       "catalog.max_page_size",
	"default_sort":        "catalog.default_sort",
	"earliest_date":       "catalog.earliest_date",
	"latest_date":         "catalog.latest_date",
	"options_ttl":         "catalog.options_ttl",
	"session_idle":        "sessions.idle_timeout",
	"session_sweep":       "sessions.sweep_interval",
	"details_timeout":     "sessions.details_timeout",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
	"log_caller":          "logging.caller",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration. An explicit path must exist; otherwise
// CONFIG_PATH and DefaultConfigPaths are tried.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// env values arrive as a single comma-separated string
	if v, ok := k.Get("security.cors_origins").(string); ok {
		if err := k.Set("security.cors_origins", splitList(v)); err != nil {
			return nil, fmt.Errorf("failed to set cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
