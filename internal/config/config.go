package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/dwell/config.yaml"

// Config holds all dwell configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Storage  StorageConfig  `yaml:"storage"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`
	Env      string         `yaml:"env"`
}

type TrackingConfig struct {
	MinDurationMs  int64    `yaml:"min_duration_ms"`
	IgnoredSchemes []string `yaml:"ignored_schemes"`
	ExcludeDomains []string `yaml:"exclude_domains"`
}

type StorageConfig struct {
	Backend       string         `yaml:"backend"`
	Path          string         `yaml:"path"`
	SQLiteFile    string         `yaml:"sqlite_file"`
	RetentionDays int            `yaml:"retention_days"`
	Redis         RedisConfig    `yaml:"redis"`
	Postgres      PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type DaemonConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	MaxRequestSize int64    `yaml:"max_request_size"`
	QueueSize      int      `yaml:"queue_size"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugBuffer int    `yaml:"debug_buffer"`
}

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Load reads a YAML config file at path and merges it with defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Tracking.IgnoredSchemes = NormalizeList(cfg.Tracking.IgnoredSchemes)
	cfg.Tracking.ExcludeDomains = NormalizeList(cfg.Tracking.ExcludeDomains)

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Tracking.MinDurationMs < 0 {
		return fmt.Errorf("tracking.min_duration_ms must not be negative, got %d", c.Tracking.MinDurationMs)
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendPostgres && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
	}

	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}

	if c.Daemon.QueueSize <= 0 {
		return fmt.Errorf("daemon.queue_size must be positive, got %d", c.Daemon.QueueSize)
	}

	return nil
}

// SQLitePath returns the absolute path of the SQLite database file.
func (c *Config) SQLitePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// DaemonAddr returns host:port for the HTTP listener.
func (c *Config) DaemonAddr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	return Load(path)
}
