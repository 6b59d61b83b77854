// Package db provides CRUD operations for taskdock data models.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/uuid"
)

// TaskStore provides persistence for tasks and conflict logs.
type TaskStore struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and reused afterwards.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewTaskStore creates a new TaskStore instance.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (s *TaskStore) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *TaskStore) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// Create inserts a new task. The id, timestamps, and pending sync state
// are assigned here.
func (s *TaskStore) Create(task *models.Task) error {
	now := time.Now().Unix()
	if task.ID == "" {
		task.ID = models.UUID(uuid.New())
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	task.SyncState = models.SyncStatePending

	query := `
	INSERT INTO tasks (id, title, description, completed, is_deleted,
		created_at, updated_at, sync_state, remote_id, last_synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, task.ID, task.Title, task.Description,
		task.Completed, task.IsDeleted, task.CreatedAt, task.UpdatedAt,
		task.SyncState, task.RemoteID, task.LastSyncedAt)
	return err
}

// Get retrieves a task by id, including soft-deleted rows.
// Returns (nil, nil) when no task exists under the id.
func (s *TaskStore) Get(id string) (*models.Task, error) {
	query := `
	SELECT id, title, description, completed, is_deleted,
		   created_at, updated_at, sync_state, remote_id, last_synced_at
	FROM tasks WHERE id = ?
	`
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var task models.Task
	err = stmt.QueryRow(id).Scan(
		&task.ID, &task.Title, &task.Description, &task.Completed,
		&task.IsDeleted, &task.CreatedAt, &task.UpdatedAt,
		&task.SyncState, &task.RemoteID, &task.LastSyncedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks ordered by creation time, oldest first. Soft-deleted
// tasks are excluded unless includeDeleted is set.
func (s *TaskStore) List(includeDeleted bool) ([]*models.Task, error) {
	query := `
	SELECT id, title, description, completed, is_deleted,
		   created_at, updated_at, sync_state, remote_id, last_synced_at
	FROM tasks
	`
	if !includeDeleted {
		query += " WHERE is_deleted = 0"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(
			&task.ID, &task.Title, &task.Description, &task.Completed,
			&task.IsDeleted, &task.CreatedAt, &task.UpdatedAt,
			&task.SyncState, &task.RemoteID, &task.LastSyncedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// Update writes the mutable fields of an existing task.
func (s *TaskStore) Update(task *models.Task) error {
	query := `
	UPDATE tasks
	SET title = ?, description = ?, completed = ?, is_deleted = ?,
		updated_at = ?, sync_state = ?
	WHERE id = ?
	`
	res, err := s.db.Exec(query, task.Title, task.Description,
		task.Completed, task.IsDeleted, task.UpdatedAt, task.SyncState, task.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete flags a task as deleted and resets its sync state to pending.
func (s *TaskStore) SoftDelete(id string) error {
	query := `
	UPDATE tasks
	SET is_deleted = 1, updated_at = ?, sync_state = ?
	WHERE id = ?
	`
	res, err := s.db.Exec(query, time.Now().Unix(), models.SyncStatePending, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Upsert writes the full task row, inserting or replacing by id. Used by
// the sync engine to adopt server-resolved versions.
func (s *TaskStore) Upsert(task *models.Task) error {
	query := `
	INSERT INTO tasks (id, title, description, completed, is_deleted,
		created_at, updated_at, sync_state, remote_id, last_synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		completed = excluded.completed,
		is_deleted = excluded.is_deleted,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		sync_state = excluded.sync_state,
		remote_id = excluded.remote_id,
		last_synced_at = excluded.last_synced_at
	`
	_, err := s.db.Exec(query, task.ID, task.Title, task.Description,
		task.Completed, task.IsDeleted, task.CreatedAt, task.UpdatedAt,
		task.SyncState, task.RemoteID, task.LastSyncedAt)
	return err
}

// MarkSyncState updates a task's sync bookkeeping. The remote id is only
// written when non-empty and the synced timestamp only when non-zero, so
// an error-state mark never clears earlier sync metadata.
func (s *TaskStore) MarkSyncState(id string, state models.SyncState, remoteID string, syncedAt int64) error {
	query := `
	UPDATE tasks
	SET sync_state = ?,
		remote_id = CASE WHEN ? != '' THEN ? ELSE remote_id END,
		last_synced_at = CASE WHEN ? > 0 THEN ? ELSE last_synced_at END
	WHERE id = ?
	`
	res, err := s.db.Exec(query, state, remoteID, remoteID, syncedAt, syncedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordConflict archives a resolved conflict.
func (s *TaskStore) RecordConflict(log *models.ConflictLog) error {
	if log.ID == "" {
		log.ID = models.UUID(uuid.New())
	}
	if log.DetectedAt == 0 {
		log.DetectedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO conflict_log (id, task_id, local_timestamp, remote_timestamp,
		resolution, losing_snapshot, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, log.ID, log.TaskID, log.LocalTimestamp,
		log.RemoteTimestamp, log.Resolution, string(log.LosingSnapshot), log.DetectedAt)
	return err
}

// ConflictsForTask returns the archived conflicts for one task,
// newest first.
func (s *TaskStore) ConflictsForTask(taskID string) ([]*models.ConflictLog, error) {
	query := `
	SELECT id, task_id, local_timestamp, remote_timestamp,
		   resolution, losing_snapshot, detected_at
	FROM conflict_log WHERE task_id = ?
	ORDER BY detected_at DESC, id
	`
	rows, err := s.db.Query(query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ConflictLog
	for rows.Next() {
		var log models.ConflictLog
		var snapshot string
		if err := rows.Scan(&log.ID, &log.TaskID, &log.LocalTimestamp,
			&log.RemoteTimestamp, &log.Resolution, &snapshot, &log.DetectedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			log.LosingSnapshot = []byte(snapshot)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
