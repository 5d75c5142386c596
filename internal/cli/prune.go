package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

type pruneJSON struct {
	Cutoff string   `json:"cutoff"`
	DryRun bool     `json:"dry_run"`
	Days   []string `json:"days"`
	Pruned int64    `json:"pruned"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	ctx := context.Background()

	cfg, store, closeStore, err := c.deps.resolve(ctx, c.globals)
	if err != nil {
		return err
	}
	defer closeStore()

	return c.executeWithStore(ctx, cfg, store, time.Now())
}

func (c *PruneCommand) executeWithStore(ctx context.Context, cfg *config.Config, store storage.Store, now time.Time) error {
	olderThan := c.OlderThan
	if olderThan == "" {
		olderThan = strconv.Itoa(cfg.Storage.RetentionDays) + "d"
	}
	retention, err := parseDuration(olderThan)
	if err != nil {
		return err
	}
	cutoff := storage.DayKey(now.Add(-retention))

	days, err := store.Days(ctx)
	if err != nil {
		return fmt.Errorf("list days: %w", err)
	}
	var doomed []string
	for _, d := range days {
		if d < cutoff {
			doomed = append(doomed, d)
		}
	}

	out := pruneJSON{Cutoff: cutoff, DryRun: c.DryRun, Days: doomed}
	if out.Days == nil {
		out.Days = []string{}
	}

	if !c.DryRun {
		n, err := store.PruneBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune before %s: %w", cutoff, err)
		}
		out.Pruned = n
	}

	if jsonOutput(c.globals) {
		return printJSON(out)
	}

	if c.DryRun {
		fmt.Printf("Would prune %d days before %s.\n", len(doomed), cutoff)
		for _, d := range doomed {
			fmt.Printf("  %s\n", d)
		}
		return nil
	}
	fmt.Printf("Pruned %d days before %s.\n", out.Pruned, cutoff)
	return nil
}
