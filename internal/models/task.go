// Package models provides data model definitions for taskdock.
package models

import (
	"database/sql/driver"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// SyncState tracks whether a task has been confirmed by the remote peer.
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
	SyncStateError   SyncState = "error"
)

// Operation is the kind of mutation recorded in the sync queue.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// IsValid reports whether the operation is one of create, update, delete.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Task represents a synchronized task record.
// LastSyncedAt is 0 until the remote peer has confirmed the task;
// a task in SyncStateSynced always has a non-zero LastSyncedAt.
type Task struct {
	ID           UUID      `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description,omitempty"`
	Completed    bool      `db:"completed" json:"completed"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt    int64     `db:"created_at" json:"created_at"`
	UpdatedAt    int64     `db:"updated_at" json:"updated_at"`
	SyncState    SyncState `db:"sync_state" json:"sync_state"`
	RemoteID     string    `db:"remote_id" json:"remote_id,omitempty"`
	LastSyncedAt int64     `db:"last_synced_at" json:"last_synced_at,omitempty"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (t *Task) CreatedAtTime() time.Time {
	return time.Unix(t.CreatedAt, 0)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (t *Task) UpdatedAtTime() time.Time {
	return time.Unix(t.UpdatedAt, 0)
}

// Touch updates the UpdatedAt timestamp and resets the sync state to
// pending, since a local edit always needs another round-trip.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().Unix()
	t.SyncState = SyncStatePending
}
