// Package tasks provides the task service: local CRUD paired with
// durable mutation capture for sync.
package tasks

import (
	"strings"

	"github.com/taskdock/taskdock/internal/db"
	apperrors "github.com/taskdock/taskdock/internal/errors"
	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/protocol"
	"github.com/taskdock/taskdock/internal/sync/queue"
)

// MaxTitleLength bounds a task title.
const MaxTitleLength = 500

// Service couples the task store with the mutation queue. Every write
// lands locally first and then enqueues the matching operation, so the
// app never blocks on the network and sync can replay the change later.
type Service struct {
	store *db.TaskStore
	queue *queue.Queue
}

// NewService creates a task service over an opened store and queue.
func NewService(store *db.TaskStore, queue *queue.Queue) *Service {
	return &Service{store: store, queue: queue}
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.New(apperrors.ErrTaskInvalid, "title must not be empty")
	}
	if len(title) > MaxTitleLength {
		return apperrors.New(apperrors.ErrTaskInvalid, "title too long")
	}
	return nil
}

// get loads a live task or returns a typed not-found error.
func (s *Service) get(id string) (*models.Task, error) {
	task, err := s.store.Get(id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load task", err)
	}
	if task == nil || task.IsDeleted {
		return nil, apperrors.New(apperrors.ErrTaskNotFound, "task not found: "+id)
	}
	return task, nil
}

// enqueue captures the task's current state for the given operation.
func (s *Service) enqueue(task *models.Task, op models.Operation) error {
	payload, err := protocol.EncodePayload(op, task)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode mutation", err)
	}
	if _, err := s.queue.Enqueue(string(task.ID), op, payload); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to enqueue mutation", err)
	}
	return nil
}

// Create stores a new task and enqueues its creation.
func (s *Service) Create(title, description string) (*models.Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       strings.TrimSpace(title),
		Description: description,
	}
	if err := s.store.Create(task); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create task", err)
	}
	if err := s.enqueue(task, models.OperationCreate); err != nil {
		return nil, err
	}

	logging.Info("Task created", map[string]interface{}{"task_id": string(task.ID)})
	return task, nil
}

// Get returns a live task by id.
func (s *Service) Get(id string) (*models.Task, error) {
	return s.get(id)
}

// List returns live tasks, oldest first.
func (s *Service) List() ([]*models.Task, error) {
	tasks, err := s.store.List(false)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list tasks", err)
	}
	return tasks, nil
}

// Update replaces a task's title and description and enqueues the edit.
func (s *Service) Update(id, title, description string) (*models.Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	task, err := s.get(id)
	if err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(title)
	task.Description = description
	task.Touch()

	if err := s.store.Update(task); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to update task", err)
	}
	if err := s.enqueue(task, models.OperationUpdate); err != nil {
		return nil, err
	}
	return task, nil
}

// SetCompleted flips a task's completion flag and enqueues the edit.
func (s *Service) SetCompleted(id string, completed bool) (*models.Task, error) {
	task, err := s.get(id)
	if err != nil {
		return nil, err
	}

	task.Completed = completed
	task.Touch()

	if err := s.store.Update(task); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to update task", err)
	}
	if err := s.enqueue(task, models.OperationUpdate); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete soft-deletes a task and enqueues the deletion. The row stays
// in the store so sync can still reconcile it.
func (s *Service) Delete(id string) error {
	task, err := s.get(id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDelete(id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete task", err)
	}

	// Re-read so the delete payload carries the deletion timestamp.
	task, err = s.store.Get(id)
	if err != nil || task == nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to reload deleted task", err)
	}
	if err := s.enqueue(task, models.OperationDelete); err != nil {
		return err
	}

	logging.Info("Task deleted", map[string]interface{}{"task_id": id})
	return nil
}

// Conflicts returns the archived sync conflicts for a task, newest
// first. Deleted tasks are included: their history is still useful.
func (s *Service) Conflicts(id string) ([]*models.ConflictLog, error) {
	logs, err := s.store.ConflictsForTask(id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load conflicts", err)
	}
	return logs, nil
}

// PendingCount reports how many mutations await sync.
func (s *Service) PendingCount() (int, error) {
	return s.queue.Size()
}
