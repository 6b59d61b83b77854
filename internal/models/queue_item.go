// Package models provides data model definitions for taskdock.
package models

import (
	"encoding/json"
	"time"
)

// QueueItem is a durable record of one pending mutation awaiting remote
// confirmation. The item id doubles as the correlation id on the wire.
// Payload is frozen at enqueue time; only RetryCount and ErrorMessage
// change afterwards.
type QueueItem struct {
	ID           UUID            `db:"id" json:"id"`
	TaskID       UUID            `db:"task_id" json:"task_id"`
	Operation    Operation       `db:"operation" json:"operation"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for QueueItem.
func (QueueItem) TableName() string {
	return "sync_queue"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (q *QueueItem) CreatedAtTime() time.Time {
	return time.Unix(q.CreatedAt, 0)
}
