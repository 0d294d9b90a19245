// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Entity tables plus outbox, dead letters, and sync metadata.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		client_id TEXT PRIMARY KEY,
		server_id TEXT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		exercises TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME,
		dirty INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sessions (
		client_id TEXT PRIMARY KEY,
		server_id TEXT,
		workout_client_id TEXT NOT NULL,
		workout_server_id TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		status TEXT NOT NULL,
		notes TEXT,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME,
		dirty INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS set_records (
		client_id TEXT PRIMARY KEY,
		server_id TEXT,
		session_client_id TEXT NOT NULL,
		session_server_id TEXT,
		exercise_name TEXT NOT NULL,
		set_number INTEGER NOT NULL,
		reps INTEGER NOT NULL DEFAULT 0,
		weight REAL,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME,
		dirty INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tbl TEXT NOT NULL,
		op TEXT NOT NULL,
		client_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS dead_letters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tbl TEXT NOT NULL,
		op TEXT NOT NULL,
		client_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL,
		reason TEXT NOT NULL,
		failed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_server ON templates(server_id) WHERE server_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_server ON sessions(server_id) WHERE server_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sets_server ON set_records(server_id) WHERE server_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_sessions_workout ON sessions(workout_client_id);
	CREATE INDEX IF NOT EXISTS idx_sets_session ON set_records(session_client_id);
	CREATE INDEX IF NOT EXISTS idx_outbox_order ON outbox(enqueued_at, id);
	`

	_, err := d.db.Exec(schema)
	return err
}
