// Package transport tests for the batch client and connectivity probe.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/taskdock/taskdock/internal/config"
	apperrors "github.com/taskdock/taskdock/internal/errors"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/protocol"
)

func testConfig(endpoint string) config.SyncConfig {
	cfg := config.DefaultSync(endpoint)
	cfg.RequestTimeout = 2 * time.Second
	cfg.ProbeTimeout = 500 * time.Millisecond
	return cfg
}

func queueItems(ids ...string) []*models.QueueItem {
	items := make([]*models.QueueItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, &models.QueueItem{
			ID:        models.UUID(id),
			TaskID:    models.UUID("task-" + id),
			Operation: models.OperationCreate,
			Payload:   []byte(`{"title":"x","created_at":1,"updated_at":1}`),
		})
	}
	return items
}

// TestSendDecodesDispositions verifies a well-formed exchange.
func TestSendDecodesDispositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != BatchPath {
			t.Errorf("path = %q, want %q", r.URL.Path, BatchPath)
		}

		var req protocol.BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("server could not decode request: %v", err)
		}
		if len(req.Items) != 2 {
			t.Errorf("server got %d items, want 2", len(req.Items))
		}

		resp := protocol.BatchResponse{Dispositions: []protocol.Disposition{
			{ID: req.Items[0].ID, Status: protocol.StatusSuccess, RemoteID: "srv-1"},
			{ID: req.Items[1].ID, Status: protocol.StatusError, Error: "rejected"},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	resp, err := client.Send(context.Background(), queueItems("q1", "q2"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(resp.Dispositions) != 2 {
		t.Fatalf("got %d dispositions, want 2", len(resp.Dispositions))
	}

	byID := resp.ByID()
	if byID["q1"].Status != protocol.StatusSuccess || byID["q1"].RemoteID != "srv-1" {
		t.Errorf("q1 disposition = %+v", byID["q1"])
	}
	if byID["q2"].Status != protocol.StatusError || byID["q2"].Error != "rejected" {
		t.Errorf("q2 disposition = %+v", byID["q2"])
	}
}

// TestSendConnectionRefused verifies a dead endpoint fails the batch.
func TestSendConnectionRefused(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"))

	_, err := client.Send(context.Background(), queueItems("q1"))
	if err == nil {
		t.Fatal("Send should fail against a dead endpoint")
	}
	if !apperrors.Is(err, apperrors.ErrSyncTransport) {
		t.Errorf("error = %v, want ErrSyncTransport code", err)
	}
}

// TestSendNonOKStatus verifies an HTTP error status fails the batch.
func TestSendNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	if _, err := client.Send(context.Background(), queueItems("q1")); err == nil {
		t.Fatal("Send should fail on a 500 response")
	}
}

// TestSendMalformedBody verifies undecodable JSON fails the batch.
func TestSendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dispositions": [{`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	_, err := client.Send(context.Background(), queueItems("q1"))
	if err == nil {
		t.Fatal("Send should fail on malformed JSON")
	}
	if !apperrors.Is(err, apperrors.ErrSyncMalformed) {
		t.Errorf("error = %v, want ErrSyncMalformed code", err)
	}
}

// TestSendUncorrelatedDisposition verifies a response for unknown ids
// fails the batch as a unit.
func TestSendUncorrelatedDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := protocol.BatchResponse{Dispositions: []protocol.Disposition{
			{ID: "some-other-item", Status: protocol.StatusSuccess},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	_, err := client.Send(context.Background(), queueItems("q1"))
	if err == nil {
		t.Fatal("Send should fail when dispositions do not correlate")
	}
	if !apperrors.Is(err, apperrors.ErrSyncMalformed) {
		t.Errorf("error = %v, want ErrSyncMalformed code", err)
	}
}

// TestSendTimeout verifies a slow server fails the batch.
func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"dispositions":[]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RequestTimeout = 50 * time.Millisecond
	client := NewClient(cfg)

	if _, err := client.Send(context.Background(), queueItems("q1")); err == nil {
		t.Fatal("Send should fail on timeout")
	}
}

// TestCheckConnectivity verifies the probe's boolean semantics.
func TestCheckConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	if !client.CheckConnectivity(context.Background()) {
		t.Error("probe should succeed against a live endpoint")
	}

	dead := NewClient(testConfig("http://127.0.0.1:1"))
	if dead.CheckConnectivity(context.Background()) {
		t.Error("probe should fail against a dead endpoint")
	}
}

// TestCheckConnectivityNon200 verifies a non-OK liveness reply reads as
// unreachable.
func TestCheckConnectivityNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	if client.CheckConnectivity(context.Background()) {
		t.Error("probe should treat 503 as unreachable")
	}
}
