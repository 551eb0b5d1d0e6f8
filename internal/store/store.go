// Package store persists tasks, sync history, devices and the synchronized
// device data in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB handle shared by the stores.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema. Pass ":memory:" for an ephemeral database. WAL mode allows the
// worker loop and API handlers to read concurrently; SQLite still permits a
// single writer, which suits the one-task-at-a-time execution model.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite does not support multiple writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Timestamps are stored as Unix nanoseconds so creation-order ties break
// deterministically when ranking the queue.
const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	vendor TEXT NOT NULL,
	ip_address TEXT NOT NULL,
	port INTEGER NOT NULL DEFAULT 443,
	username TEXT NOT NULL DEFAULT '',
	password TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_tasks (
	id TEXT PRIMARY KEY,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	name TEXT NOT NULL,
	sync_kinds TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	progress INTEGER NOT NULL DEFAULT 0,
	current_kind TEXT,
	message TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 2,
	queue_position INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	batch_id TEXT NOT NULL DEFAULT '',
	is_batch INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sync_tasks_status ON sync_tasks(status);
CREATE INDEX IF NOT EXISTS idx_sync_tasks_device ON sync_tasks(device_id, created_at);

CREATE TABLE IF NOT EXISTS sync_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	sync_kind TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	is_batch INTEGER NOT NULL DEFAULT 0,
	batch_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_history_device ON sync_history(device_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sync_history_batch ON sync_history(batch_id);

CREATE TABLE IF NOT EXISTS policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	seq INTEGER NOT NULL DEFAULT 0,
	rule_name TEXT NOT NULL,
	enable TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	service TEXT NOT NULL DEFAULT '',
	user TEXT NOT NULL DEFAULT '',
	application TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	vsys TEXT NOT NULL DEFAULT '',
	security_profile TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	last_hit_date INTEGER,
	unused_days INTEGER NOT NULL DEFAULT 0,
	usage_status TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL,
	last_sync_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policies_device_rule ON policies(device_id, rule_name);

CREATE TABLE IF NOT EXISTS network_objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	value TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL,
	last_sync_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS network_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	name TEXT NOT NULL,
	members TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL,
	last_sync_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS service_objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	name TEXT NOT NULL,
	protocol TEXT NOT NULL DEFAULT '',
	port TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL,
	last_sync_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS service_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	name TEXT NOT NULL,
	members TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL,
	last_sync_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS system_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL UNIQUE REFERENCES devices(id),
	hostname TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	uptime TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	mac_address TEXT NOT NULL DEFAULT '',
	serial_number TEXT NOT NULL DEFAULT '',
	app_version TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	last_sync_at INTEGER NOT NULL
);
`
