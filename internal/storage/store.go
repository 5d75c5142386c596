package storage

import (
	"context"
	"fmt"
	"sort"
)

// Store defines the day-keyed totals persistence used by the tracker.
type Store interface {
	// GetDay returns the totals for day. A day with no data yields an
	// empty, non-nil map.
	GetDay(ctx context.Context, day string) (DailyTotals, error)
	// AddDuration atomically adds c.DurationMs to (c.Day, c.Domain).
	AddDuration(ctx context.Context, c Commit) error
	// Days lists the day keys that hold data, oldest first.
	Days(ctx context.Context) ([]string, error)
	// PruneBefore deletes every day strictly before day and reports how many
	// days were removed.
	PruneBefore(ctx context.Context, day string) (int64, error)
	// Purge deletes all data.
	Purge(ctx context.Context) error
	Close() error
}

// GetStats summarizes a store through its Days listing.
func GetStats(ctx context.Context, s Store, backend string) (*Stats, error) {
	days, err := s.Days(ctx)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	sort.Strings(days)

	stats := &Stats{Backend: backend, Days: len(days)}
	if len(days) > 0 {
		stats.Oldest = days[0]
		stats.Newest = days[len(days)-1]
	}

	if sv, ok := s.(SchemaVersioner); ok {
		v, err := sv.SchemaVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("schema version: %w", err)
		}
		stats.SchemaVersion = v
	}
	return stats, nil
}

// SchemaVersioner is implemented by stores that run versioned migrations.
type SchemaVersioner interface {
	SchemaVersion(ctx context.Context) (int, error)
}

func validateCommit(c Commit) error {
	if c.Day == "" {
		return fmt.Errorf("commit has no day key")
	}
	if c.Domain == "" {
		return fmt.Errorf("commit has no domain")
	}
	if c.DurationMs < 0 {
		return fmt.Errorf("negative duration %dms for %s", c.DurationMs, c.Domain)
	}
	return nil
}

// CommitLister is implemented by stores that keep an interval log.
type CommitLister interface {
	Commits(ctx context.Context, day string) ([]Commit, error)
}
