// Package queue provides the durable mutation queue backing offline sync.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/uuid"
)

// Queue is an ordered, durable log of pending mutations, stored in the
// client's SQLite database. Items are FIFO by enqueue order. A payload is
// frozen at enqueue time; only retry_count and error_message mutate.
//
// Superseding mutations become new items rather than rewriting queued
// ones, and no coalescing is applied: redundant items cost round-trips
// but the remote application of each operation is idempotent, so they
// never cost correctness.
type Queue struct {
	db *sql.DB
}

// New creates a Queue over an opened client database.
func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends a durable item and returns its id, which doubles as
// the correlation id on the wire. It never touches the network; the only
// failure mode is storage I/O, which propagates.
func (q *Queue) Enqueue(taskID string, op models.Operation, payload json.RawMessage) (string, error) {
	if !op.IsValid() {
		return "", fmt.Errorf("invalid operation %q", op)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("payload must not be empty")
	}

	id := uuid.New()

	query := `
	INSERT INTO sync_queue (id, task_id, operation, payload, retry_count, error_message, created_at)
	VALUES (?, ?, ?, ?, 0, '', strftime('%s', 'now'))
	`
	if _, err := q.db.Exec(query, id, taskID, op, string(payload)); err != nil {
		return "", fmt.Errorf("failed to enqueue %s for task %s: %w", op, taskID, err)
	}

	logging.Debug("Enqueued mutation", map[string]interface{}{
		"item_id":   id,
		"task_id":   taskID,
		"operation": string(op),
	})

	return id, nil
}

// All returns every queued item, oldest first. It reads the current
// durable state on every call, never a cached snapshot.
func (q *Queue) All() ([]*models.QueueItem, error) {
	query := `
	SELECT id, task_id, operation, payload, retry_count, error_message, created_at
	FROM sync_queue ORDER BY position
	`
	rows, err := q.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var payload string
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Operation,
			&payload, &item.RetryCount, &item.ErrorMessage, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Payload = json.RawMessage(payload)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Remove deletes an item. Removing an id that is not queued is a no-op,
// so a replayed disposition cannot fail the pass.
func (q *Queue) Remove(id string) error {
	if _, err := q.db.Exec("DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove queue item %s: %w", id, err)
	}
	return nil
}

// RecordFailure increments an item's retry count, stores the error
// message, and returns the updated count so the caller can apply the
// retry-limit policy.
func (q *Queue) RecordFailure(id, errorMessage string) (int, error) {
	res, err := q.db.Exec(
		"UPDATE sync_queue SET retry_count = retry_count + 1, error_message = ? WHERE id = ?",
		errorMessage, id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record failure for item %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("queue item %s not found", id)
	}

	var count int
	if err := q.db.QueryRow("SELECT retry_count FROM sync_queue WHERE id = ?", id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read retry count for item %s: %w", id, err)
	}
	return count, nil
}

// Size returns the number of queued items.
func (q *Queue) Size() (int, error) {
	var count int
	err := q.db.QueryRow("SELECT COUNT(*) FROM sync_queue").Scan(&count)
	return count, err
}
