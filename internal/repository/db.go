package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Passes never overlap, and a single connection keeps ":memory:" usable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sales_ledger (
			app_id TEXT NOT NULL,
			date TEXT NOT NULL,
			gross_units INTEGER NOT NULL,
			net_units INTEGER NOT NULL,
			net_sales REAL NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (app_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS review_cache (
			app_id TEXT PRIMARY KEY,
			total INTEGER NOT NULL,
			positive INTEGER NOT NULL,
			negative INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			app_id TEXT NOT NULL,
			message TEXT NOT NULL,
			delivered INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_kind ON notifications(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_app ON notifications(app_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`,

		`CREATE TABLE IF NOT EXISTS pass_runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			notifications INTEGER NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pass_runs_name ON pass_runs(name, started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstN(stmt, 60), err)
		}
	}

	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
