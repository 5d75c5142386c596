// Package daemon serves the local HTTP API the browser extension talks to.
// Events are funnelled through a single-worker queue into the tracker.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/debuglog"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tabs"
	"github.com/runnerr0/dwell/internal/tracker"
)

const (
	shutdownTimeout = 30 * time.Second
	flushTimeout    = 10 * time.Second
)

// Options wires a Server. Tracker, Registry and Store are required.
type Options struct {
	Config   config.DaemonConfig
	Tracker  *tracker.Tracker
	Registry *tabs.Registry
	Store    storage.Store
	Backend  string
	Ring     *debuglog.Log
	Logger   *slog.Logger
	Version  string
}

type Server struct {
	cfg      config.DaemonConfig
	tracker  *tracker.Tracker
	registry *tabs.Registry
	store    storage.Store
	backend  string
	ring     *debuglog.Log
	logger   *slog.Logger
	version  string

	queue     *Queue
	engine    *gin.Engine
	startedAt time.Time

	// stopping is closed when shutdown begins so long-lived streams return.
	stopping chan struct{}
	stopOnce sync.Once
}

func New(opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		tracker:   opts.Tracker,
		registry:  opts.Registry,
		store:     opts.Store,
		backend:   opts.Backend,
		ring:      opts.Ring,
		logger:    opts.Logger,
		version:   opts.Version,
		startedAt: time.Now(),
		stopping:  make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.queue = NewQueue(opts.Config.QueueSize, s.handleEvent)
	s.engine = s.setupRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// handleEvent runs on the queue worker.
func (s *Server) handleEvent(ctx context.Context, ev tracker.Event) {
	s.registry.Apply(ev)
	s.tracker.Handle(ctx, ev)
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.Use(requestIDMiddleware())
	r.Use(accessLogMiddleware(s.logger))
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))
	r.Use(maxBodyMiddleware(s.cfg.MaxRequestSize))

	r.GET("/status", s.getStatus)

	api := r.Group("/api/v1")
	api.Use(apiKeyMiddleware(s.cfg.AuthToken))
	{
		api.POST("/events", s.postEvents)
		api.POST("/message", s.postMessage)
		api.GET("/today", s.getToday)
		api.GET("/debug/log", s.getDebugLog)
		api.GET("/debug/stream", s.streamDebugLog)
	}

	return r
}

// Run listens on the configured address and serves until ctx is cancelled
// or the listener fails, then shuts down: stop accepting requests, drain
// queued events, and flush the open interval.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go s.queue.Run(workerCtx)

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.stopStreams)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("daemon listening", "addr", ln.Addr().String(), "backend", s.backend)
		errCh <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down daemon")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve on %s: %w", ln.Addr(), err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", "error", err)
	}

	// A slow HTTP shutdown must not starve the drain or the final commit.
	drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelDrain()
	if err := s.drain(drainCtx); err != nil {
		s.logger.Warn("event queue not drained", "pending", s.queue.Len(), "error", err)
		cancelWorker()
	}

	flushCtx, cancelFlush := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancelFlush()
	s.tracker.Flush(flushCtx)

	s.logger.Info("daemon stopped")
	return runErr
}

// stopStreams ends every open debug stream. Safe to call more than once.
func (s *Server) stopStreams() {
	s.stopOnce.Do(func() { close(s.stopping) })
}

// drain closes the queue and waits for the worker to finish what is queued.
func (s *Server) drain(ctx context.Context) error {
	s.queue.Close()
	select {
	case <-s.queue.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
