// Package models provides data model definitions for taskdock.
package models

import (
	"encoding/json"
	"time"
)

// ConflictLog archives one resolved concurrent edit, including a snapshot
// of the losing version so nothing is discarded silently.
type ConflictLog struct {
	ID              UUID            `db:"id" json:"id"`
	TaskID          UUID            `db:"task_id" json:"task_id"`
	LocalTimestamp  int64           `db:"local_timestamp" json:"local_timestamp"`
	RemoteTimestamp int64           `db:"remote_timestamp" json:"remote_timestamp"`
	Resolution      string          `db:"resolution" json:"resolution"` // local_wins, remote_wins
	LosingSnapshot  json.RawMessage `db:"losing_snapshot" json:"losing_snapshot,omitempty"`
	DetectedAt      int64           `db:"detected_at" json:"detected_at"`
}

// TableName returns the table name for ConflictLog.
func (ConflictLog) TableName() string {
	return "conflict_log"
}

// DetectedAtTime returns the DetectedAt as time.Time.
func (c *ConflictLog) DetectedAtTime() time.Time {
	return time.Unix(c.DetectedAt, 0)
}
