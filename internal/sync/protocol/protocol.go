// Package protocol defines the wire contract for the batch sync exchange.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskdock/taskdock/internal/models"
)

// Status is the server's verdict on one submitted item.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// IsValid reports whether the status is a known disposition tag.
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusConflict, StatusError:
		return true
	}
	return false
}

// BatchItem is one queued mutation on the wire. ID is the correlation id;
// the server echoes it back on the matching disposition.
type BatchItem struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"task_id"`
	Operation models.Operation `json:"operation"`
	Payload   json.RawMessage  `json:"payload"`
	QueuedAt  int64            `json:"queued_at"`
}

// BatchRequest is the client's half of one batch exchange.
type BatchRequest struct {
	Items  []BatchItem `json:"items"`
	SentAt int64       `json:"sent_at"`
}

// NewBatchRequest builds a request from queue items in submission order.
func NewBatchRequest(items []*models.QueueItem) BatchRequest {
	req := BatchRequest{
		Items:  make([]BatchItem, 0, len(items)),
		SentAt: time.Now().Unix(),
	}
	for _, item := range items {
		req.Items = append(req.Items, BatchItem{
			ID:        string(item.ID),
			TaskID:    string(item.TaskID),
			Operation: item.Operation,
			Payload:   item.Payload,
			QueuedAt:  item.CreatedAt,
		})
	}
	return req
}

// TaskSnapshot is the server's resolved view of a task, carried on
// success and conflict dispositions.
type TaskSnapshot struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	IsDeleted   bool   `json:"is_deleted"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// ToModel converts the snapshot into a task record. Sync bookkeeping
// fields are left for the caller to fill in.
func (s *TaskSnapshot) ToModel() *models.Task {
	return &models.Task{
		ID:          models.UUID(s.ID),
		Title:       s.Title,
		Description: s.Description,
		Completed:   s.Completed,
		IsDeleted:   s.IsDeleted,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// SnapshotFromTask builds a wire snapshot from a task record.
func SnapshotFromTask(task *models.Task) *TaskSnapshot {
	return &TaskSnapshot{
		ID:          string(task.ID),
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		IsDeleted:   task.IsDeleted,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// Disposition is the server's verdict on one submitted item.
type Disposition struct {
	ID       string        `json:"id"`
	Status   Status        `json:"status"`
	RemoteID string        `json:"remote_id,omitempty"`
	Task     *TaskSnapshot `json:"task,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// BatchResponse is the server's half of one batch exchange. Disposition
// order is not guaranteed to match submission order; correlate by id.
type BatchResponse struct {
	Dispositions []Disposition `json:"dispositions"`
}

// ByID indexes dispositions by correlation id.
func (r *BatchResponse) ByID() map[string]Disposition {
	byID := make(map[string]Disposition, len(r.Dispositions))
	for _, d := range r.Dispositions {
		byID[d.ID] = d
	}
	return byID
}

// Validate checks a response against the submitted items: every
// disposition must carry a valid status and correlate to a submitted id.
// A response failing validation fails the whole batch.
func (r *BatchResponse) Validate(submitted []BatchItem) error {
	ids := make(map[string]bool, len(submitted))
	for _, item := range submitted {
		ids[item.ID] = true
	}

	seen := make(map[string]bool, len(r.Dispositions))
	for _, d := range r.Dispositions {
		if d.ID == "" {
			return fmt.Errorf("disposition missing correlation id")
		}
		if !ids[d.ID] {
			return fmt.Errorf("disposition for unknown item %q", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate disposition for item %q", d.ID)
		}
		if !d.Status.IsValid() {
			return fmt.Errorf("disposition for item %q has unknown status %q", d.ID, d.Status)
		}
		seen[d.ID] = true
	}

	return nil
}
