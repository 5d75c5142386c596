package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store on a shared Postgres database, for users who
// want one set of totals across machines.
type PostgresStore struct {
	db *sqlx.DB
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_totals (
		day        TEXT        NOT NULL,
		domain     TEXT        NOT NULL,
		ms         BIGINT      NOT NULL DEFAULT 0 CHECK (ms >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (day, domain)
	)`,
	`CREATE TABLE IF NOT EXISTS interval_log (
		id          UUID PRIMARY KEY,
		day         TEXT        NOT NULL,
		domain      TEXT        NOT NULL,
		tab_id      INTEGER     NOT NULL DEFAULT 0,
		started_at  TIMESTAMPTZ NOT NULL,
		ended_at    TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT      NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interval_log_day ON interval_log(day)`,
}

// OpenPostgres connects with dsn, configures the pool and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &PostgresStore{db: db}, nil
}

// GetDay returns the totals for day.
func (s *PostgresStore) GetDay(ctx context.Context, day string) (DailyTotals, error) {
	var rows []DomainData
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT domain, ms FROM daily_totals WHERE day = $1", day,
	); err != nil {
		return nil, fmt.Errorf("select totals for %s: %w", day, err)
	}

	totals := make(DailyTotals, len(rows))
	for _, r := range rows {
		totals[r.Domain] = r.TimeSpent
	}
	return totals, nil
}

// AddDuration upserts the daily total and inserts the interval row in one
// transaction.
func (s *PostgresStore) AddDuration(ctx context.Context, c Commit) error {
	if err := validateCommit(c); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_totals (day, domain, ms, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (day, domain) DO UPDATE SET
			ms = daily_totals.ms + EXCLUDED.ms,
			updated_at = now()`,
		c.Day, c.Domain, c.DurationMs,
	); err != nil {
		return fmt.Errorf("upsert total: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interval_log (id, day, domain, tab_id, started_at, ended_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Day, c.Domain, c.TabID, c.StartedAt, c.EndedAt, c.DurationMs,
	); err != nil {
		return fmt.Errorf("insert interval log: %w", err)
	}

	return tx.Commit()
}

type pgCommitRow struct {
	ID         uuid.UUID `db:"id"`
	Day        string    `db:"day"`
	Domain     string    `db:"domain"`
	TabID      int       `db:"tab_id"`
	StartedAt  time.Time `db:"started_at"`
	EndedAt    time.Time `db:"ended_at"`
	DurationMs int64     `db:"duration_ms"`
}

// Commits lists the intervals committed on day, oldest first.
func (s *PostgresStore) Commits(ctx context.Context, day string) ([]Commit, error) {
	var rows []pgCommitRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, day, domain, tab_id, started_at, ended_at, duration_ms
		FROM interval_log WHERE day = $1 ORDER BY ended_at`, day,
	); err != nil {
		return nil, fmt.Errorf("select interval log: %w", err)
	}

	commits := make([]Commit, 0, len(rows))
	for _, r := range rows {
		commits = append(commits, Commit(r))
	}
	return commits, nil
}

// Days lists stored day keys, oldest first.
func (s *PostgresStore) Days(ctx context.Context) ([]string, error) {
	days := []string{}
	if err := s.db.SelectContext(ctx, &days,
		"SELECT DISTINCT day FROM daily_totals ORDER BY day",
	); err != nil {
		return nil, fmt.Errorf("select days: %w", err)
	}
	return days, nil
}

// PruneBefore deletes totals and log rows for days before day.
func (s *PostgresStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	if err := tx.GetContext(ctx, &n,
		"SELECT COUNT(DISTINCT day) FROM daily_totals WHERE day < $1", day,
	); err != nil {
		return 0, fmt.Errorf("count days: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM interval_log WHERE day < $1", day); err != nil {
		return 0, fmt.Errorf("prune interval log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_totals WHERE day < $1", day); err != nil {
		return 0, fmt.Errorf("prune totals: %w", err)
	}

	return n, tx.Commit()
}

// Purge truncates both tables.
func (s *PostgresStore) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE interval_log, daily_totals"); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
