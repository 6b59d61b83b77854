// Package tasks tests.
package tasks

import (
	"encoding/json"
	"testing"

	"github.com/taskdock/taskdock/internal/db"
	apperrors "github.com/taskdock/taskdock/internal/errors"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/protocol"
	"github.com/taskdock/taskdock/internal/sync/queue"
)

func newTestService(t *testing.T) (*Service, *queue.Queue) {
	t.Helper()

	database, err := db.Open(t.TempDir(), "tasks.db")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.NewMigrator(database.DB, db.ClientMigrations).Up(); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	store := db.NewTaskStore(database.DB)
	t.Cleanup(func() { store.Close() })
	q := queue.New(database.DB)
	return NewService(store, q), q
}

// TestCreateEnqueuesMutation verifies every create lands in the store
// and the queue with a matching payload.
func TestCreateEnqueuesMutation(t *testing.T) {
	svc, q := newTestService(t)

	task, err := svc.Create("write report", "quarterly numbers")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.SyncState != models.SyncStatePending {
		t.Errorf("sync state = %v, want pending", task.SyncState)
	}

	items, err := q.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queue size = %d, want 1", len(items))
	}
	if items[0].Operation != models.OperationCreate {
		t.Errorf("operation = %v, want create", items[0].Operation)
	}
	if string(items[0].TaskID) != string(task.ID) {
		t.Errorf("queued task id = %s, want %s", items[0].TaskID, task.ID)
	}

	var payload protocol.CreatePayload
	if err := json.Unmarshal(items[0].Payload, &payload); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if payload.Title != "write report" || payload.Description != "quarterly numbers" {
		t.Errorf("payload = %+v", payload)
	}
}

// TestCreateValidation verifies title rules.
func TestCreateValidation(t *testing.T) {
	svc, q := newTestService(t)

	if _, err := svc.Create("", "ignored"); !apperrors.Is(err, apperrors.ErrTaskInvalid) {
		t.Errorf("empty title error = %v, want ErrTaskInvalid", err)
	}
	if _, err := svc.Create("   ", ""); !apperrors.Is(err, apperrors.ErrTaskInvalid) {
		t.Errorf("blank title error = %v, want ErrTaskInvalid", err)
	}

	if size, _ := q.Size(); size != 0 {
		t.Error("rejected creates must not enqueue anything")
	}
}

// TestUpdateEnqueuesEdit verifies edits roll the timestamp forward and
// capture the new state.
func TestUpdateEnqueuesEdit(t *testing.T) {
	svc, q := newTestService(t)

	task, err := svc.Create("old title", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.Update(string(task.ID), "new title", "with details")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "new title" || updated.Description != "with details" {
		t.Errorf("updated task = %+v", updated)
	}
	if updated.UpdatedAt < task.UpdatedAt {
		t.Error("update must not move updated_at backwards")
	}

	items, _ := q.All()
	if len(items) != 2 {
		t.Fatalf("queue size = %d, want create + update", len(items))
	}
	if items[1].Operation != models.OperationUpdate {
		t.Errorf("second item operation = %v, want update", items[1].Operation)
	}

	var payload protocol.UpdatePayload
	if err := json.Unmarshal(items[1].Payload, &payload); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if payload.Title != "new title" {
		t.Errorf("payload title = %q", payload.Title)
	}
}

// TestSetCompleted verifies the completion toggle enqueues an update.
func TestSetCompleted(t *testing.T) {
	svc, q := newTestService(t)

	task, _ := svc.Create("finish me", "")
	done, err := svc.SetCompleted(string(task.ID), true)
	if err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	if !done.Completed {
		t.Error("task should be completed")
	}

	items, _ := q.All()
	if len(items) != 2 || items[1].Operation != models.OperationUpdate {
		t.Errorf("queue = %d items, want create + update", len(items))
	}
}

// TestDeleteSoftDeletesAndEnqueues verifies the row survives for sync
// while disappearing from List.
func TestDeleteSoftDeletesAndEnqueues(t *testing.T) {
	svc, q := newTestService(t)

	task, _ := svc.Create("remove me", "")
	if err := svc.Delete(string(task.ID)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	tasks, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("List returned %d tasks, deleted task should be hidden", len(tasks))
	}

	if _, err := svc.Get(string(task.ID)); !apperrors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("Get after delete error = %v, want ErrTaskNotFound", err)
	}

	items, _ := q.All()
	if len(items) != 2 {
		t.Fatalf("queue size = %d, want create + delete", len(items))
	}
	if items[1].Operation != models.OperationDelete {
		t.Errorf("second item operation = %v, want delete", items[1].Operation)
	}
	var payload protocol.DeletePayload
	if err := json.Unmarshal(items[1].Payload, &payload); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if payload.DeletedAt <= 0 {
		t.Error("delete payload must carry the deletion timestamp")
	}
}

// TestMutateMissingTask verifies typed errors for absent ids.
func TestMutateMissingTask(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Update("no-such-id", "t", ""); !apperrors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("Update error = %v, want ErrTaskNotFound", err)
	}
	if err := svc.Delete("no-such-id"); !apperrors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("Delete error = %v, want ErrTaskNotFound", err)
	}
}

// TestPendingCount verifies the queue gauge.
func TestPendingCount(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Create("one", "")
	svc.Create("two", "")

	count, err := svc.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("pending = %d, want 2", count)
	}
}
