// Package db provides the client-side schema migration steps.
package db

// ClientMigrations defines the schema for the client store: tasks, the
// durable mutation queue, and the conflict archive.
var ClientMigrations = []Step{
	{
		Version:     1,
		Description: "create tasks table",
		SQL: `
		CREATE TABLE tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL CHECK(updated_at >= created_at),
			sync_state TEXT NOT NULL DEFAULT 'pending'
				CHECK(sync_state IN ('pending', 'synced', 'error')),
			remote_id TEXT NOT NULL DEFAULT '',
			last_synced_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_tasks_sync_state ON tasks(sync_state);
		`,
	},
	{
		Version:     2,
		Description: "create sync_queue table",
		SQL: `
		CREATE TABLE sync_queue (
			position INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL CHECK(operation IN ('create', 'update', 'delete')),
			payload TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0 CHECK(retry_count >= 0),
			error_message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_sync_queue_task ON sync_queue(task_id);
		`,
	},
	{
		Version:     3,
		Description: "create conflict_log table",
		SQL: `
		CREATE TABLE conflict_log (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			local_timestamp INTEGER NOT NULL,
			remote_timestamp INTEGER NOT NULL,
			resolution TEXT NOT NULL,
			losing_snapshot TEXT NOT NULL DEFAULT '',
			detected_at INTEGER NOT NULL
		);
		CREATE INDEX idx_conflict_log_task ON conflict_log(task_id);
		`,
	},
}
