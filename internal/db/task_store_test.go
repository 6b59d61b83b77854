// Package db tests for the task store.
package db

import (
	"testing"

	"github.com/taskdock/taskdock/internal/models"
)

// openTestDB opens a migrated client database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(t.TempDir(), "taskdock.db")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := NewMigrator(database.DB, ClientMigrations).Up(); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	return database
}

// TestCreateAndGet verifies a created task round-trips.
func TestCreateAndGet(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	task := &models.Task{Title: "write report", Description: "quarterly numbers"}
	if err := store.Create(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if task.ID == "" {
		t.Fatal("Create should assign an id")
	}
	if task.SyncState != models.SyncStatePending {
		t.Errorf("sync state = %v, want pending", task.SyncState)
	}
	if task.CreatedAt == 0 || task.UpdatedAt < task.CreatedAt {
		t.Errorf("timestamps not set: created=%d updated=%d", task.CreatedAt, task.UpdatedAt)
	}

	got, err := store.Get(string(task.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing task")
	}
	if got.Title != "write report" || got.Description != "quarterly numbers" {
		t.Errorf("got %+v, want stored fields", got)
	}
}

// TestGetMissing verifies a missing id yields (nil, nil).
func TestGetMissing(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	got, err := store.Get("no-such-id")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing task", got)
	}
}

// TestSoftDelete verifies delete flags the row without removing it.
func TestSoftDelete(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	task := &models.Task{Title: "temp"}
	if err := store.Create(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SoftDelete(string(task.ID)); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	got, err := store.Get(string(task.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !got.IsDeleted {
		t.Error("soft-deleted task should remain readable with the flag set")
	}
	if got.SyncState != models.SyncStatePending {
		t.Errorf("sync state = %v, want pending after local delete", got.SyncState)
	}

	visible, err := store.List(false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("List(false) returned %d tasks, want 0", len(visible))
	}

	all, err := store.List(true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List(true) returned %d tasks, want 1", len(all))
	}
}

// TestUpsertReplacesRow verifies Upsert overwrites an existing row in full.
func TestUpsertReplacesRow(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	task := &models.Task{Title: "original"}
	if err := store.Create(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	replacement := &models.Task{
		ID:           task.ID,
		Title:        "resolved by server",
		Completed:    true,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt + 100,
		SyncState:    models.SyncStateSynced,
		RemoteID:     "srv-42",
		LastSyncedAt: task.UpdatedAt + 100,
	}
	if err := store.Upsert(replacement); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(string(task.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "resolved by server" || !got.Completed {
		t.Errorf("got %+v, want replacement fields", got)
	}
	if got.SyncState != models.SyncStateSynced || got.RemoteID != "srv-42" {
		t.Errorf("sync metadata not adopted: %+v", got)
	}
}

// TestUpsertInsertsNewRow verifies Upsert creates a row for an unknown id.
func TestUpsertInsertsNewRow(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	task := &models.Task{
		ID:        "11111111-2222-4333-8444-555555555555",
		Title:     "from remote",
		CreatedAt: 100,
		UpdatedAt: 200,
		SyncState: models.SyncStateSynced,
	}
	if err := store.Upsert(task); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(string(task.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Title != "from remote" {
		t.Errorf("got %+v, want inserted row", got)
	}
}

// TestMarkSyncState verifies state marking and metadata preservation.
func TestMarkSyncState(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	task := &models.Task{Title: "syncable"}
	if err := store.Create(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.MarkSyncState(string(task.ID), models.SyncStateSynced, "srv-7", 12345); err != nil {
		t.Fatalf("MarkSyncState failed: %v", err)
	}

	got, _ := store.Get(string(task.ID))
	if got.SyncState != models.SyncStateSynced || got.RemoteID != "srv-7" || got.LastSyncedAt != 12345 {
		t.Errorf("got %+v, want synced metadata", got)
	}

	// Marking error with empty remote id must keep the earlier metadata.
	if err := store.MarkSyncState(string(task.ID), models.SyncStateError, "", 0); err != nil {
		t.Fatalf("MarkSyncState failed: %v", err)
	}

	got, _ = store.Get(string(task.ID))
	if got.SyncState != models.SyncStateError {
		t.Errorf("sync state = %v, want error", got.SyncState)
	}
	if got.RemoteID != "srv-7" || got.LastSyncedAt != 12345 {
		t.Errorf("error mark clobbered metadata: %+v", got)
	}
}

// TestMarkSyncStateMissing verifies marking an unknown id errors.
func TestMarkSyncStateMissing(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	if err := store.MarkSyncState("no-such-id", models.SyncStateSynced, "", 0); err == nil {
		t.Error("MarkSyncState on missing id should error")
	}
}

// TestRecordConflict verifies conflict archiving round-trips.
func TestRecordConflict(t *testing.T) {
	store := NewTaskStore(openTestDB(t).DB)
	defer store.Close()

	log := &models.ConflictLog{
		TaskID:          "task-1",
		LocalTimestamp:  100,
		RemoteTimestamp: 200,
		Resolution:      "remote_wins",
		LosingSnapshot:  []byte(`{"title":"old"}`),
	}
	if err := store.RecordConflict(log); err != nil {
		t.Fatalf("RecordConflict failed: %v", err)
	}

	logs, err := store.ConflictsForTask("task-1")
	if err != nil {
		t.Fatalf("ConflictsForTask failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Resolution != "remote_wins" {
		t.Errorf("resolution = %q, want remote_wins", logs[0].Resolution)
	}
	if string(logs[0].LosingSnapshot) != `{"title":"old"}` {
		t.Errorf("snapshot = %s, want archived version", logs[0].LosingSnapshot)
	}
}
