package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the SQLite file and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates a single writer best.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

const schemaDeviceState = `
CREATE TABLE IF NOT EXISTS device_state (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    class TEXT NOT NULL,
    power BOOLEAN NOT NULL,
    current_temp_c REAL NOT NULL,
    target_temp_c REAL NOT NULL,
    mode TEXT NOT NULL,
    preset TEXT NOT NULL,
    eco_temp_c REAL NOT NULL,
    comfort_temp_c REAL NOT NULL,
    ice_temp_c REAL NOT NULL,
    schedule TEXT,
    connection_source TEXT NOT NULL,
    firmware_version TEXT,
    firmware_update BOOLEAN NOT NULL,
    energy_total_kwh REAL NOT NULL,
    power_instant_w REAL NOT NULL,
    last_updated TIMESTAMP NOT NULL
);
`

const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    device_id TEXT,
    message TEXT NOT NULL,
    meta TEXT
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{schemaDeviceState, schemaEvents} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
