package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version       string         `json:"version"`
	Backend       string         `json:"backend"`
	SchemaVersion int            `json:"schema_version,omitempty"`
	Days          int            `json:"days"`
	OldestDay     string         `json:"oldest_day,omitempty"`
	NewestDay     string         `json:"newest_day,omitempty"`
	TodayMs       int64          `json:"today_ms"`
	TodayDomains  int            `json:"today_domains"`
	RetentionDays int            `json:"retention_days"`
	MinDurationMs int64          `json:"min_duration_ms"`
	DaemonAddr    string         `json:"daemon_addr"`
	DaemonRunning bool           `json:"daemon_running"`
	Daemon        *daemon.Status `json:"daemon,omitempty"`
}

// daemonProbe is replaced in tests.
var daemonProbe = checkDaemon

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	ctx := context.Background()

	cfg, store, closeStore, err := c.deps.resolve(ctx, c.globals)
	if err != nil {
		return err
	}
	defer closeStore()

	return c.executeWithStore(ctx, cfg, store, time.Now())
}

func (c *StatusCommand) executeWithStore(ctx context.Context, cfg *config.Config, store storage.Store, now time.Time) error {
	stats, err := storage.GetStats(ctx, store, cfg.Storage.Backend)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	today, err := store.GetDay(ctx, storage.DayKey(now))
	if err != nil {
		return fmt.Errorf("read today: %w", err)
	}

	out := statusJSON{
		Version:       c.version,
		Backend:       stats.Backend,
		SchemaVersion: stats.SchemaVersion,
		Days:          stats.Days,
		OldestDay:     stats.Oldest,
		NewestDay:     stats.Newest,
		TodayMs:       today.Total(),
		TodayDomains:  len(today),
		RetentionDays: cfg.Storage.RetentionDays,
		MinDurationMs: cfg.Tracking.MinDurationMs,
		DaemonAddr:    cfg.DaemonAddr(),
	}
	out.Daemon = daemonProbe(cfg.DaemonAddr())
	out.DaemonRunning = out.Daemon != nil

	if jsonOutput(c.globals) {
		return printJSON(out)
	}
	c.printStatusHuman(out)
	return nil
}

func (c *StatusCommand) printStatusHuman(s statusJSON) {
	fmt.Println("dwell status")
	fmt.Println("============")
	fmt.Printf("Version:       %s\n", s.Version)
	fmt.Printf("Backend:       %s\n", s.Backend)
	if s.SchemaVersion > 0 {
		fmt.Printf("Schema:        v%d\n", s.SchemaVersion)
	}
	fmt.Printf("Days stored:   %d\n", s.Days)
	if s.Days > 0 {
		fmt.Printf("Oldest:        %s\n", s.OldestDay)
		fmt.Printf("Newest:        %s\n", s.NewestDay)
	}
	fmt.Printf("Today:         %s across %d domains\n", formatTimeSpent(s.TodayMs), s.TodayDomains)
	fmt.Printf("Retention:     %d days\n", s.RetentionDays)
	fmt.Printf("Threshold:     %dms\n", s.MinDurationMs)

	fmt.Println()
	if !s.DaemonRunning {
		fmt.Printf("Daemon:        not running (%s)\n", s.DaemonAddr)
		return
	}
	fmt.Printf("Daemon:        running on %s (%s)\n", s.DaemonAddr, s.Daemon.Version)
	fmt.Printf("Queue:         %d pending\n", s.Daemon.QueueDepth)
	if s.Daemon.StreamClients > 0 {
		fmt.Printf("Log streams:   %d\n", s.Daemon.StreamClients)
	}
	if s.Daemon.Current != nil {
		fmt.Printf("Tracking:      %s since %s\n", s.Daemon.Current.Domain, s.Daemon.Current.StartedAt.Local().Format("15:04:05"))
	} else if !s.Daemon.WindowFocused {
		fmt.Println("Tracking:      paused, browser not focused")
	} else {
		fmt.Println("Tracking:      idle")
	}
}

// checkDaemon asks the daemon at addr for its status. It returns nil when
// nothing answers within a second.
func checkDaemon(addr string) *daemon.Status {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body struct {
		Data    daemon.Status `json:"data"`
		Success bool          `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success {
		return nil
	}
	return &body.Data
}
