package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

type todayJSON struct {
	Day       string               `json:"day"`
	TotalMs   int64                `json:"total_ms"`
	Domains   []storage.DomainData `json:"domains"`
	Intervals []intervalJSON       `json:"intervals,omitempty"`
}

type intervalJSON struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	TabID      int       `json:"tab_id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Execute implements the go-flags Commander interface for TodayCommand.
func (c *TodayCommand) Execute(args []string) error {
	ctx := context.Background()

	_, store, closeStore, err := c.deps.resolve(ctx, c.globals)
	if err != nil {
		return err
	}
	defer closeStore()

	return c.executeWithStore(ctx, store, time.Now())
}

func (c *TodayCommand) executeWithStore(ctx context.Context, store storage.Store, now time.Time) error {
	day := storage.DayKey(now)
	if c.Date != "" {
		if _, err := time.ParseInLocation(storage.DayLayout, c.Date, time.Local); err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", c.Date)
		}
		day = c.Date
	}

	totals, err := store.GetDay(ctx, day)
	if err != nil {
		return fmt.Errorf("read totals for %s: %w", day, err)
	}

	var commits []storage.Commit
	if c.Intervals {
		lister, ok := store.(storage.CommitLister)
		if !ok {
			return fmt.Errorf("--intervals is not supported by this storage backend")
		}
		if commits, err = lister.Commits(ctx, day); err != nil {
			return fmt.Errorf("list intervals for %s: %w", day, err)
		}
	}

	if jsonOutput(c.globals) {
		out := todayJSON{Day: day, TotalMs: totals.Total(), Domains: totals.Sorted()}
		for _, cm := range commits {
			out.Intervals = append(out.Intervals, intervalJSON{
				ID:         cm.ID.String(),
				Domain:     cm.Domain,
				TabID:      cm.TabID,
				StartedAt:  cm.StartedAt,
				EndedAt:    cm.EndedAt,
				DurationMs: cm.DurationMs,
			})
		}
		return printJSON(out)
	}

	printTotals(day, totals)

	if c.Intervals {
		fmt.Println()
		fmt.Println("Intervals:")
		for _, cm := range commits {
			fmt.Printf("  %s-%s  %-30s %s\n",
				cm.StartedAt.Local().Format("15:04:05"),
				cm.EndedAt.Local().Format("15:04:05"),
				cm.Domain, formatTimeSpent(cm.DurationMs))
		}
	}
	return nil
}

func printTotals(day string, totals storage.DailyTotals) {
	fmt.Printf("dwell: %s\n", day)
	if len(totals) == 0 {
		fmt.Println("No activity recorded.")
		return
	}
	for _, d := range totals.Sorted() {
		fmt.Printf("  %-30s %s\n", d.Domain, formatTimeSpent(d.TimeSpent))
	}
	fmt.Printf("  %-30s %s\n", "total", formatTimeSpent(totals.Total()))
}
