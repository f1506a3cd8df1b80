package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Storage selects the key-value backend.
type Storage struct {
	Driver    string `json:"driver" yaml:"driver" toml:"driver"` // memory, sqlite or redis
	Path      string `json:"path" yaml:"path" toml:"path"`
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisDB   int    `json:"redis_db" yaml:"redis_db" toml:"redis_db"`
	Prefix    string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	CatalogPath  string `json:"catalog" yaml:"catalog" toml:"catalog"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Backend used for catalog entries that do not name one.
	Backend string `json:"backend" yaml:"backend" toml:"backend"`
	// CacheCapacity bounds the asset cache in entries; 0 is unbounded.
	CacheCapacity int `json:"cache_capacity" yaml:"cache_capacity" toml:"cache_capacity"`

	MaxQueueDepth       int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds      int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	DrainTimeoutSeconds int   `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`
	InferTimeoutSeconds int   `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"` // console or json

	Storage Storage `json:"storage" yaml:"storage" toml:"storage"`
}

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	return Config{
		Addr:                ":8080",
		MaxQueueDepth:       32,
		MaxWaitSeconds:      30,
		DrainTimeoutSeconds: 30,
		MaxBodyBytes:        1 << 20,
		LogLevel:            "info",
		LogFormat:           "console",
		Storage: Storage{
			Driver: "sqlite",
			Path:   "~/.local/share/textgend/storage.db",
			Prefix: "12.09",
		},
	}
}

// WithDefaults fills zero fields of c from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = d.MaxQueueDepth
	}
	if c.MaxWaitSeconds == 0 {
		c.MaxWaitSeconds = d.MaxWaitSeconds
	}
	if c.DrainTimeoutSeconds == 0 {
		c.DrainTimeoutSeconds = d.DrainTimeoutSeconds
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" && c.Storage.Driver == "sqlite" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = d.Storage.Prefix
	}
	return c
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
