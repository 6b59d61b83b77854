// Package protocol defines the wire contract for the batch sync exchange.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/taskdock/taskdock/internal/models"
)

// Payloads form a tagged union keyed by operation. Each variant carries
// the field values captured when the mutation was enqueued, never a live
// reference to the task.

// CreatePayload carries the full initial state of a new task.
type CreatePayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Validate checks the variant's fixed field set.
func (p *CreatePayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("create payload: title must not be empty")
	}
	if p.CreatedAt <= 0 {
		return fmt.Errorf("create payload: created_at must be set")
	}
	if p.UpdatedAt < p.CreatedAt {
		return fmt.Errorf("create payload: updated_at before created_at")
	}
	return nil
}

// UpdatePayload carries the replacement field values for an edit.
type UpdatePayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Validate checks the variant's fixed field set.
func (p *UpdatePayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("update payload: title must not be empty")
	}
	if p.UpdatedAt <= 0 {
		return fmt.Errorf("update payload: updated_at must be set")
	}
	return nil
}

// DeletePayload carries the soft-delete timestamp.
type DeletePayload struct {
	DeletedAt int64 `json:"deleted_at"`
}

// Validate checks the variant's fixed field set.
func (p *DeletePayload) Validate() error {
	if p.DeletedAt <= 0 {
		return fmt.Errorf("delete payload: deleted_at must be set")
	}
	return nil
}

// EncodePayload captures a task's state as the payload variant for the
// given operation.
func EncodePayload(op models.Operation, task *models.Task) (json.RawMessage, error) {
	var payload interface{}

	switch op {
	case models.OperationCreate:
		payload = &CreatePayload{
			Title:       task.Title,
			Description: task.Description,
			Completed:   task.Completed,
			CreatedAt:   task.CreatedAt,
			UpdatedAt:   task.UpdatedAt,
		}
	case models.OperationUpdate:
		payload = &UpdatePayload{
			Title:       task.Title,
			Description: task.Description,
			Completed:   task.Completed,
			UpdatedAt:   task.UpdatedAt,
		}
	case models.OperationDelete:
		payload = &DeletePayload{
			DeletedAt: task.UpdatedAt,
		}
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
	}
	return data, nil
}

// DecodePayload parses and validates the payload variant for the given
// operation. It is the transport-boundary check: nothing past it sees a
// shapeless blob.
func DecodePayload(op models.Operation, raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload for %s", op)
	}

	switch op {
	case models.OperationCreate:
		var p CreatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed create payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case models.OperationUpdate:
		var p UpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed update payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case models.OperationDelete:
		var p DeletePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed delete payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}
