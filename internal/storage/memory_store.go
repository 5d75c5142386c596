package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps totals in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	days    map[string]DailyTotals
	commits map[string][]Commit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days:    make(map[string]DailyTotals),
		commits: make(map[string][]Commit),
	}
}

// GetDay returns a copy of the totals for day.
func (s *MemoryStore) GetDay(_ context.Context, day string) (DailyTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(DailyTotals, len(s.days[day]))
	for domain, ms := range s.days[day] {
		out[domain] = ms
	}
	return out, nil
}

// AddDuration adds c to its day total and records it in the commit list.
func (s *MemoryStore) AddDuration(_ context.Context, c Commit) error {
	if err := validateCommit(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	totals, ok := s.days[c.Day]
	if !ok {
		totals = make(DailyTotals)
		s.days[c.Day] = totals
	}
	totals[c.Domain] += c.DurationMs
	s.commits[c.Day] = append(s.commits[c.Day], c)
	return nil
}

// Commits lists the intervals committed on day in commit order.
func (s *MemoryStore) Commits(_ context.Context, day string) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit{}, s.commits[day]...), nil
}

// Days lists stored day keys, oldest first.
func (s *MemoryStore) Days(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := make([]string, 0, len(s.days))
	for day := range s.days {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

// PruneBefore drops every day before day and reports how many were removed.
func (s *MemoryStore) PruneBefore(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for d := range s.days {
		if d < day {
			delete(s.days, d)
			delete(s.commits, d)
			n++
		}
	}
	return n, nil
}

// Purge drops all totals and commits.
func (s *MemoryStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[string]DailyTotals)
	s.commits = make(map[string][]Commit)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
