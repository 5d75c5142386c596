package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tabs"
	"github.com/runnerr0/dwell/internal/tracker"
)

// replayClock reports the timestamp of the event being replayed.
type replayClock struct{ now time.Time }

func (c *replayClock) Now() time.Time { return c.now }

type replayJSON struct {
	Events  int                             `json:"events"`
	Skipped int                             `json:"skipped"`
	DryRun  bool                            `json:"dry_run"`
	Days    map[string][]storage.DomainData `json:"days"`
}

// Execute implements the go-flags Commander interface for ReplayCommand.
func (c *ReplayCommand) Execute(args []string) error {
	if c.File == "" {
		return fmt.Errorf("replay requires --file")
	}
	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	ctx := context.Background()
	d := c.deps
	if c.DryRun && d.store == nil {
		d.store = storage.NewMemoryStore()
	}
	cfg, store, closeStore, err := d.resolve(ctx, c.globals)
	if err != nil {
		return err
	}
	defer closeStore()

	return c.executeWithStore(ctx, cfg, store, f)
}

// executeWithStore feeds every event in r through a fresh tracker backed by
// store. Each event is handled at its own timestamp; events without one
// reuse the previous timestamp. The interval still open at the end is
// closed at the last timestamp.
func (c *ReplayCommand) executeWithStore(ctx context.Context, cfg *config.Config, store storage.Store, r io.Reader) error {
	logger := logging.Discard()
	if c.globals != nil && c.globals.Verbose {
		logger = logging.New(cfg.Env, config.LoggingConfig{Level: "debug", Format: "text"}, os.Stderr, nil)
	}

	clock := &replayClock{}
	registry := tabs.NewRegistry()
	tr := tracker.New(tracker.Options{
		Store:          store,
		Source:         registry,
		Clock:          clock,
		Logger:         logger,
		MinDuration:    time.Duration(cfg.Tracking.MinDurationMs) * time.Millisecond,
		IgnoredSchemes: cfg.Tracking.IgnoredSchemes,
		ExcludeDomains: cfg.Tracking.ExcludeDomains,
	})

	out := replayJSON{DryRun: c.DryRun, Days: map[string][]storage.DomainData{}}
	touched := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var ev tracker.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := ev.Validate(); err != nil {
			logger.Warn("skipping event", "line", line, "error", err)
			out.Skipped++
			continue
		}
		if !ev.Timestamp.IsZero() {
			if ev.Timestamp.Before(clock.now) {
				return fmt.Errorf("line %d: timestamp %s goes backwards", line, ev.Timestamp.Format(time.RFC3339Nano))
			}
			clock.now = ev.Timestamp
		}
		if clock.now.IsZero() {
			return fmt.Errorf("line %d: first event has no timestamp", line)
		}

		registry.Apply(ev)
		tr.Handle(ctx, ev)
		touched[storage.DayKey(clock.now)] = true
		out.Events++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	tr.Flush(ctx)

	days := make([]string, 0, len(touched))
	for d := range touched {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		out.Days[d] = tracker.Totals(ctx, store, d, logger)
	}

	if jsonOutput(c.globals) {
		return printJSON(out)
	}

	fmt.Printf("Replayed %d events (%d skipped).\n", out.Events, out.Skipped)
	if c.DryRun {
		fmt.Println("Dry run: nothing was written.")
	}
	for _, d := range days {
		fmt.Println()
		totals := storage.DailyTotals{}
		for _, dd := range out.Days[d] {
			totals[dd.Domain] = dd.TimeSpent
		}
		printTotals(d, totals)
	}
	return nil
}
