package storage

import "database/sql"

// migrateV001 creates the per-day totals table. The (day, domain) primary key
// is what makes commits a single atomic upsert.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_totals (
			day        TEXT    NOT NULL,
			domain     TEXT    NOT NULL,
			ms         INTEGER NOT NULL DEFAULT 0 CHECK (ms >= 0),
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (day, domain)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_totals_day ON daily_totals(day)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
