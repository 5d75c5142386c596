package storage

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DayLayout is the day-key format used to partition totals.
const DayLayout = "2006-01-02"

// DayKey returns the YYYY-MM-DD key for t in local time.
func DayKey(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// DailyTotals maps a domain to the milliseconds accumulated for one day.
type DailyTotals map[string]int64

// DomainData is the read-side projection of one DailyTotals entry.
type DomainData struct {
	Domain    string `json:"domain" db:"domain"`
	TimeSpent int64  `json:"timeSpent" db:"ms"`
}

// Commit records one closed interval being added to a day's totals.
type Commit struct {
	ID         uuid.UUID
	Day        string
	Domain     string
	TabID      int
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64
}

// NewCommit builds a Commit for an interval that ran from start to end,
// attributed to the day on which it ended.
func NewCommit(domain string, tabID int, start, end time.Time) Commit {
	return Commit{
		ID:         uuid.New(),
		Day:        DayKey(end),
		Domain:     domain,
		TabID:      tabID,
		StartedAt:  start,
		EndedAt:    end,
		DurationMs: end.Sub(start).Milliseconds(),
	}
}

// Sorted projects totals into DomainData ordered by time spent, longest first.
// Ties are broken by domain so the output is stable.
func (t DailyTotals) Sorted() []DomainData {
	out := make([]DomainData, 0, len(t))
	for domain, ms := range t {
		out = append(out, DomainData{Domain: domain, TimeSpent: ms})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSpent != out[j].TimeSpent {
			return out[i].TimeSpent > out[j].TimeSpent
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Total returns the sum of all domains.
func (t DailyTotals) Total() int64 {
	var sum int64
	for _, ms := range t {
		sum += ms
	}
	return sum
}

// Stats holds aggregate information about what a store holds.
type Stats struct {
	Backend string
	Days    int
	Oldest  string
	Newest  string

	// SchemaVersion is the applied migration level; 0 for unversioned backends.
	SchemaVersion int
}
