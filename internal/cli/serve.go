package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/debuglog"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/tabs"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}

	switch cfg.Env {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	ring := debuglog.New(cfg.Logging.DebugBuffer)
	logger := logging.New(cfg.Env, cfg.Logging, os.Stderr, ring)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := tabs.NewRegistry()
	tr := tracker.New(tracker.Options{
		Store:          store,
		Source:         registry,
		Logger:         logger.With("component", "tracker"),
		MinDuration:    time.Duration(cfg.Tracking.MinDurationMs) * time.Millisecond,
		IgnoredSchemes: cfg.Tracking.IgnoredSchemes,
		ExcludeDomains: cfg.Tracking.ExcludeDomains,
	})

	srv := daemon.New(daemon.Options{
		Config:   cfg.Daemon,
		Tracker:  tr,
		Registry: registry,
		Store:    store,
		Backend:  cfg.Storage.Backend,
		Ring:     ring,
		Logger:   logger.With("component", "daemon"),
		Version:  c.version,
	})

	logger.Info("starting dwell",
		"version", c.version,
		"env", cfg.Env,
		"backend", cfg.Storage.Backend,
		"minDurationMs", tr.MinDuration().Milliseconds(),
	)
	return srv.Run(ctx)
}

func (c *ServeCommand) applyOverrides(cfg *config.Config) error {
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Backend != "" {
		cfg.Storage.Backend = c.Backend
	}
	if c.globals != nil && c.globals.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
