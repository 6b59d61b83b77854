// Package server implements the reference sync peer: the HTTP service
// that receives mutation batches and answers with dispositions.
package server

import (
	"database/sql"
	"time"

	"github.com/taskdock/taskdock/internal/db"
	"github.com/taskdock/taskdock/internal/sync/protocol"
	"github.com/taskdock/taskdock/internal/uuid"
)

// Migrations is the server-side schema. Rows are keyed by the client
// task id so batches correlate without a lookup table; the server
// assigns its own remote id on first contact.
var Migrations = []db.Step{
	{
		Version:     1,
		Description: "create remote_tasks table",
		SQL: `
		CREATE TABLE remote_tasks (
			task_id     TEXT PRIMARY KEY,
			remote_id   TEXT NOT NULL UNIQUE,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed   INTEGER NOT NULL DEFAULT 0,
			is_deleted  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL,
			received_at INTEGER NOT NULL,
			CHECK (updated_at >= created_at)
		);
		`,
	},
}

// RemoteTask is the server's record of one task.
type RemoteTask struct {
	TaskID      string
	RemoteID    string
	Title       string
	Description string
	Completed   bool
	IsDeleted   bool
	CreatedAt   int64
	UpdatedAt   int64
	ReceivedAt  int64
}

// Snapshot renders the record as the wire view of the task.
func (t *RemoteTask) Snapshot() *protocol.TaskSnapshot {
	return &protocol.TaskSnapshot{
		ID:          t.TaskID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Store persists the server's task state.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened, migrated server database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the record for a client task id, or (nil, nil) when the
// server has never seen the task.
func (s *Store) Get(taskID string) (*RemoteTask, error) {
	query := `
	SELECT task_id, remote_id, title, description, completed, is_deleted,
		   created_at, updated_at, received_at
	FROM remote_tasks WHERE task_id = ?
	`
	var t RemoteTask
	err := s.db.QueryRow(query, taskID).Scan(
		&t.TaskID, &t.RemoteID, &t.Title, &t.Description, &t.Completed,
		&t.IsDeleted, &t.CreatedAt, &t.UpdatedAt, &t.ReceivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new record from a create payload and assigns the
// remote id.
func (s *Store) Create(taskID string, p *protocol.CreatePayload) (*RemoteTask, error) {
	t := &RemoteTask{
		TaskID:      taskID,
		RemoteID:    uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		Completed:   p.Completed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ReceivedAt:  time.Now().Unix(),
	}

	query := `
	INSERT INTO remote_tasks (task_id, remote_id, title, description,
		completed, is_deleted, created_at, updated_at, received_at)
	VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
	`
	_, err := s.db.Exec(query, t.TaskID, t.RemoteID, t.Title, t.Description,
		t.Completed, t.CreatedAt, t.UpdatedAt, t.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies an update payload over an existing record and returns
// the new state.
func (s *Store) Update(t *RemoteTask, p *protocol.UpdatePayload) (*RemoteTask, error) {
	t.Title = p.Title
	t.Description = p.Description
	t.Completed = p.Completed
	t.UpdatedAt = p.UpdatedAt
	t.ReceivedAt = time.Now().Unix()

	query := `
	UPDATE remote_tasks
	SET title = ?, description = ?, completed = ?, updated_at = ?, received_at = ?
	WHERE task_id = ?
	`
	_, err := s.db.Exec(query, t.Title, t.Description, t.Completed,
		t.UpdatedAt, t.ReceivedAt, t.TaskID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Delete soft-deletes an existing record and returns the new state.
func (s *Store) Delete(t *RemoteTask, deletedAt int64) (*RemoteTask, error) {
	t.IsDeleted = true
	if deletedAt > t.UpdatedAt {
		t.UpdatedAt = deletedAt
	}
	t.ReceivedAt = time.Now().Unix()

	query := `
	UPDATE remote_tasks
	SET is_deleted = 1, updated_at = ?, received_at = ?
	WHERE task_id = ?
	`
	_, err := s.db.Exec(query, t.UpdatedAt, t.ReceivedAt, t.TaskID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns every record, oldest first. Used for inspection only.
func (s *Store) List() ([]*RemoteTask, error) {
	query := `
	SELECT task_id, remote_id, title, description, completed, is_deleted,
		   created_at, updated_at, received_at
	FROM remote_tasks ORDER BY created_at, task_id
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*RemoteTask
	for rows.Next() {
		var t RemoteTask
		if err := rows.Scan(&t.TaskID, &t.RemoteID, &t.Title, &t.Description,
			&t.Completed, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt, &t.ReceivedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
