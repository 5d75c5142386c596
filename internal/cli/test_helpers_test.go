package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestStore creates a migrated in-memory SQLite store.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	return cfg
}

// testNow is midday so day keys never straddle midnight.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

func seed(t *testing.T, store storage.Store, day, domain string, ms int64) {
	t.Helper()
	start := testNow.Add(-time.Duration(ms) * time.Millisecond)
	c := storage.NewCommit(domain, 1, start, testNow)
	c.Day = day
	c.DurationMs = ms
	require.NoError(t, store.AddDuration(context.Background(), c))
}
