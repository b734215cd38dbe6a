// Package config loads the configuration of the pagebuilder host.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGEBUILDER_"

// Duration is a time.Duration written as "1.5s" in every config format.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the host configuration.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Backend BackendConfig `json:"backend" yaml:"backend" toml:"backend"`
	Store   StoreConfig   `json:"store" yaml:"store" toml:"store"`
	Pages   PagesConfig   `json:"pages" yaml:"pages" toml:"pages"`
	Widgets WidgetsConfig `json:"widgets" yaml:"widgets" toml:"widgets"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
}

// ServerConfig configures the HTTP host API.
type ServerConfig struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// BackendConfig locates the workflow backend that re-executes pages.
type BackendConfig struct {
	URL          string   `json:"url" yaml:"url" toml:"url"`
	ProjectID    string   `json:"project_id" yaml:"project_id" toml:"project_id"`
	WorkflowID   string   `json:"workflow_id" yaml:"workflow_id" toml:"workflow_id"`
	Timeout      Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	MaxPolls     int      `json:"max_polls" yaml:"max_polls" toml:"max_polls"`
}

// StoreConfig selects where session snapshots are kept.
type StoreConfig struct {
	Driver        string   `json:"driver" yaml:"driver" toml:"driver"`
	Path          string   `json:"path" yaml:"path" toml:"path"`
	RedisAddr     string   `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string   `json:"redis_password" yaml:"redis_password" toml:"redis_password"`
	RedisDB       int      `json:"redis_db" yaml:"redis_db" toml:"redis_db"`
	Prefix        string   `json:"prefix" yaml:"prefix" toml:"prefix"`
	TTL           Duration `json:"ttl" yaml:"ttl" toml:"ttl"`
}

// PagesConfig points to page files loaded at startup.
type PagesConfig struct {
	Dir      string   `json:"dir" yaml:"dir" toml:"dir"`
	Watch    bool     `json:"watch" yaml:"watch" toml:"watch"`
	Debounce Duration `json:"debounce" yaml:"debounce" toml:"debounce"`
}

// WidgetsConfig bounds the wait for widgets that are still loading.
type WidgetsConfig struct {
	MountRetries int      `json:"mount_retries" yaml:"mount_retries" toml:"mount_retries"`
	MountDelay   Duration `json:"mount_delay" yaml:"mount_delay" toml:"mount_delay"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Load reads path (TOML, JSON or YAML by extension), applies environment
// overrides and validates the result. An empty path, or one that does not
// exist, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := Decode(data, filepath.Ext(path), cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.ApplyEnvOverrides(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Decode parses data into cfg according to the file extension ext.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// ApplyEnvOverrides applies PAGEBUILDER_* variables found by lookup.
// Malformed numbers are ignored and left to the file or default value.
func (c *Config) ApplyEnvOverrides(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("ADDR", &c.Server.Addr)
	str("BACKEND_URL", &c.Backend.URL)
	str("PROJECT_ID", &c.Backend.ProjectID)
	str("WORKFLOW_ID", &c.Backend.WorkflowID)
	num("MAX_POLLS", &c.Backend.MaxPolls)
	str("STORE", &c.Store.Driver)
	str("STORE_PATH", &c.Store.Path)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	str("REDIS_PASSWORD", &c.Store.RedisPassword)
	num("REDIS_DB", &c.Store.RedisDB)
	str("PAGES_DIR", &c.Pages.Dir)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
}
