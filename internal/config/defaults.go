package config

// DefaultMinDurationMs is the shortest interval that is committed to the store.
const DefaultMinDurationMs = 1000

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			MinDurationMs:  DefaultMinDurationMs,
			IgnoredSchemes: DefaultIgnoredSchemes(),
			ExcludeDomains: []string{},
		},
		Storage: StorageConfig{
			Backend:       BackendSQLite,
			Path:          "~/.config/dwell",
			SQLiteFile:    "dwell.db",
			RetentionDays: 90,
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				Password:  "",
				DB:        0,
				KeyPrefix: "dwell",
			},
			Postgres: PostgresConfig{
				DSN: "",
			},
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			AuthToken:      "",
			MaxRequestSize: 1 << 20,
			QueueSize:      256,
			AllowedOrigins: []string{},
		},
		// Level and Format stay empty so the env picks them.
		Logging: LoggingConfig{
			DebugBuffer: 500,
		},
		Env: "local",
	}
}
