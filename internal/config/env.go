package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFile is loaded into the process environment before overrides are read.
// A missing file is not an error.
var EnvFile = ".env"

// applyEnv overlays DWELL_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", EnvFile, err)
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = NormalizeList(strings.Split(v, ","))
		}
	}

	str("DWELL_ENV", &cfg.Env)
	str("DWELL_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("DWELL_STORAGE_PATH", &cfg.Storage.Path)
	str("DWELL_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	str("DWELL_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	str("DWELL_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	str("DWELL_HOST", &cfg.Daemon.Host)
	str("DWELL_AUTH_TOKEN", &cfg.Daemon.AuthToken)
	str("DWELL_LOG_LEVEL", &cfg.Logging.Level)
	str("DWELL_LOG_FORMAT", &cfg.Logging.Format)
	list("DWELL_IGNORED_SCHEMES", &cfg.Tracking.IgnoredSchemes)
	list("DWELL_EXCLUDE_DOMAINS", &cfg.Tracking.ExcludeDomains)
	list("DWELL_ALLOWED_ORIGINS", &cfg.Daemon.AllowedOrigins)

	ints := []struct {
		key string
		set func(int64)
	}{
		{"DWELL_PORT", func(n int64) { cfg.Daemon.Port = int(n) }},
		{"DWELL_MIN_DURATION_MS", func(n int64) { cfg.Tracking.MinDurationMs = n }},
		{"DWELL_REDIS_DB", func(n int64) { cfg.Storage.Redis.DB = int(n) }},
		{"DWELL_QUEUE_SIZE", func(n int64) { cfg.Daemon.QueueSize = int(n) }},
		{"DWELL_RETENTION_DAYS", func(n int64) { cfg.Storage.RetentionDays = int(n) }},
	}
	for _, it := range ints {
		v, ok := os.LookupEnv(it.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", it.key, v, err)
		}
		it.set(n)
	}

	return nil
}
