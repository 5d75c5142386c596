package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB

	// Prepared statements
	upsertTotal *sql.Stmt
	insertLog   *sql.Stmt
}

// OpenSQLite opens the database file at path, runs migrations and returns a
// ready store. The store owns the connection and closes it in Close.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated
// database. The store takes ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: sqlx.NewDb(db, "sqlite3")}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	// Unqualified ms in the update clause is the stored row's value.
	s.upsertTotal, err = s.db.Prepare(`
		INSERT INTO daily_totals (day, domain, ms, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day, domain) DO UPDATE SET
			ms = ms + excluded.ms,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}

	s.insertLog, err = s.db.Prepare(`
		INSERT INTO interval_log (id, day, domain, tab_id, started_at, ended_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	return nil
}

// GetDay returns the totals for day.
func (s *SQLiteStore) GetDay(ctx context.Context, day string) (DailyTotals, error) {
	var rows []DomainData
	err := s.db.SelectContext(ctx, &rows,
		"SELECT domain, ms FROM daily_totals WHERE day = ?", day,
	)
	if err != nil {
		return nil, fmt.Errorf("select totals for %s: %w", day, err)
	}

	totals := make(DailyTotals, len(rows))
	for _, r := range rows {
		totals[r.Domain] = r.TimeSpent
	}
	return totals, nil
}

// AddDuration upserts the total and appends to the interval log in one transaction.
func (s *SQLiteStore) AddDuration(ctx context.Context, c Commit) error {
	if err := validateCommit(c); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.StmtContext(ctx, s.upsertTotal).ExecContext(ctx, c.Day, c.Domain, c.DurationMs); err != nil {
		return fmt.Errorf("upsert total: %w", err)
	}

	_, err = tx.StmtContext(ctx, s.insertLog).ExecContext(ctx,
		c.ID.String(), c.Day, c.Domain, c.TabID,
		c.StartedAt.UTC().Format(time.RFC3339Nano),
		c.EndedAt.UTC().Format(time.RFC3339Nano),
		c.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert interval log: %w", err)
	}

	return tx.Commit()
}

// commitRow is the interval_log row shape.
type commitRow struct {
	ID         string `db:"id"`
	Day        string `db:"day"`
	Domain     string `db:"domain"`
	TabID      int    `db:"tab_id"`
	StartedAt  string `db:"started_at"`
	EndedAt    string `db:"ended_at"`
	DurationMs int64  `db:"duration_ms"`
}

// Commits lists the intervals committed on day, oldest first.
func (s *SQLiteStore) Commits(ctx context.Context, day string) ([]Commit, error) {
	var rows []commitRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, day, domain, tab_id, started_at, ended_at, duration_ms
		FROM interval_log WHERE day = ? ORDER BY ended_at`, day,
	)
	if err != nil {
		return nil, fmt.Errorf("select interval log: %w", err)
	}

	commits := make([]Commit, 0, len(rows))
	for _, r := range rows {
		c := Commit{
			Day:        r.Day,
			Domain:     r.Domain,
			TabID:      r.TabID,
			DurationMs: r.DurationMs,
		}
		c.ID, _ = uuid.Parse(r.ID)
		c.StartedAt, _ = parseTimestamp(r.StartedAt)
		c.EndedAt, _ = parseTimestamp(r.EndedAt)
		commits = append(commits, c)
	}
	return commits, nil
}

// Days lists stored day keys, oldest first.
func (s *SQLiteStore) Days(ctx context.Context) ([]string, error) {
	days := []string{}
	if err := s.db.SelectContext(ctx, &days,
		"SELECT DISTINCT day FROM daily_totals ORDER BY day",
	); err != nil {
		return nil, fmt.Errorf("select days: %w", err)
	}
	return days, nil
}

// PruneBefore deletes totals and log rows for days before day.
func (s *SQLiteStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	if err := tx.GetContext(ctx, &n,
		"SELECT COUNT(DISTINCT day) FROM daily_totals WHERE day < ?", day,
	); err != nil {
		return 0, fmt.Errorf("count days: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM interval_log WHERE day < ?", day); err != nil {
		return 0, fmt.Errorf("prune interval log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_totals WHERE day < ?", day); err != nil {
		return 0, fmt.Errorf("prune totals: %w", err)
	}

	return n, tx.Commit()
}

// Purge deletes all totals and the interval log.
func (s *SQLiteStore) Purge(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM interval_log",
		"DELETE FROM daily_totals",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	return NewMigrationRunner(s.db.DB).Version(ctx)
}

// Close releases the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.upsertTotal, s.insertLog} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// parseTimestamp tries the formats interval_log may hold.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
