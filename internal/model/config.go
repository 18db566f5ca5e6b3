package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the remote backend.
type APIConfig struct {
	// BaseURL is the root URL of the backend. Empty disables remote sync.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// EventsURL is the WebSocket endpoint. Derived from BaseURL when empty.
	EventsURL string `mapstructure:"events_url" yaml:"events_url"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// CacheConfig selects and configures the durable local cache.
type CacheConfig struct {
	// Driver is "sqlite" or "redis".
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`

	// Namespace prefixes every persisted key.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// SyncConfig controls the background retry of failed remote mutations.
type SyncConfig struct {
	RetryIntervalSec int `mapstructure:"retry_interval_sec" yaml:"retry_interval_sec"`

	// MaxAttempts drops a mutation after this many failed replays. Zero
	// retries forever.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// SyncConfigured reports whether a backend URL is set.
func (c *AppConfig) SyncConfigured() bool {
	return strings.TrimSpace(c.API.BaseURL) != ""
}

// ResolvedEventsURL returns the configured WebSocket URL, or one derived
// from the API base URL by swapping the scheme and appending /ws.
func (c *AppConfig) ResolvedEventsURL() string {
	if c.API.EventsURL != "" {
		return c.API.EventsURL
	}
	if !c.SyncConfigured() {
		return ""
	}
	u, err := url.Parse(strings.TrimRight(c.API.BaseURL, "/"))
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String()
}

// DefaultConfigDir returns ~/.config/teamboard, or "." when the home
// directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "teamboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/teamboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Driver:    "sqlite",
			Path:      filepath.Join(DefaultConfigDir(), "cache.db"),
			RedisAddr: "localhost:6379",
			Namespace: "teamboard",
		},
		Sync: SyncConfig{RetryIntervalSec: 30, MaxAttempts: 20},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Display: DisplayConfig{Theme: "dark"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed TEAMBOARD_ override file values
// (TEAMBOARD_API_BASE_URL, TEAMBOARD_LOG_LEVEL, ...). If the file does not
// exist, defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("teamboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows every key.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.events_url", def.API.EventsURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("cache.driver", def.Cache.Driver)
	v.SetDefault("cache.path", def.Cache.Path)
	v.SetDefault("cache.redis_addr", def.Cache.RedisAddr)
	v.SetDefault("cache.namespace", def.Cache.Namespace)
	v.SetDefault("sync.retry_interval_sec", def.Sync.RetryIntervalSec)
	v.SetDefault("sync.max_attempts", def.Sync.MaxAttempts)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("display.theme", def.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = def.API.TimeoutSec
	}
	if cfg.API.MaxRetries < 0 {
		cfg.API.MaxRetries = 0
	}
	if cfg.Sync.RetryIntervalSec <= 0 {
		cfg.Sync.RetryIntervalSec = def.Sync.RetryIntervalSec
	}
	if cfg.Sync.MaxAttempts < 0 {
		cfg.Sync.MaxAttempts = 0
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = def.Cache.Namespace
	}
	switch cfg.Cache.Driver {
	case "sqlite", "redis":
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("cache", cfg.Cache)
	v.Set("sync", cfg.Sync)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
