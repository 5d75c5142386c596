package storage

import "database/sql"

// migrateV002 adds the audit trail of committed intervals.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS interval_log (
			id          TEXT PRIMARY KEY,
			day         TEXT    NOT NULL,
			domain      TEXT    NOT NULL,
			tab_id      INTEGER NOT NULL DEFAULT 0,
			started_at  TEXT    NOT NULL,
			ended_at    TEXT    NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interval_log_day ON interval_log(day)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
