package server

import (
	"encoding/json"
	"net/http"

	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/sync/protocol"
)

// Handler serves the batch sync exchange.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler over a server store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Health answers the connectivity probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Batch processes one mutation batch. Every submitted item gets a
// disposition; an unprocessable item gets an error disposition rather
// than failing the batch. Only an unreadable request body fails whole.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req protocol.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "malformed batch request: " + err.Error(),
		})
		return
	}

	resp := protocol.BatchResponse{
		Dispositions: make([]protocol.Disposition, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		resp.Dispositions = append(resp.Dispositions, h.dispose(item))
	}

	logging.Debug("Batch processed", map[string]interface{}{
		"items":      len(req.Items),
		"request_id": GetRequestID(r.Context()),
	})
	writeJSON(w, http.StatusOK, resp)
}

// dispose applies one item and produces its verdict.
func (h *Handler) dispose(item protocol.BatchItem) protocol.Disposition {
	if item.ID == "" {
		return errorDisposition(item.ID, "item missing correlation id")
	}
	if item.TaskID == "" {
		return errorDisposition(item.ID, "item missing task id")
	}

	decoded, err := protocol.DecodePayload(item.Operation, item.Payload)
	if err != nil {
		return errorDisposition(item.ID, err.Error())
	}

	existing, err := h.store.Get(item.TaskID)
	if err != nil {
		return errorDisposition(item.ID, "storage failure: "+err.Error())
	}

	switch p := decoded.(type) {
	case *protocol.CreatePayload:
		return h.applyCreate(item, p, existing)
	case *protocol.UpdatePayload:
		return h.applyUpdate(item, p, existing)
	case *protocol.DeletePayload:
		return h.applyDelete(item, p, existing)
	default:
		return errorDisposition(item.ID, "unknown operation "+string(item.Operation))
	}
}

// applyCreate inserts a new task. Creating a task id the server already
// holds is a conflict: the client replays creates, and the stored
// version may have moved on.
func (h *Handler) applyCreate(item protocol.BatchItem, p *protocol.CreatePayload, existing *RemoteTask) protocol.Disposition {
	if existing != nil {
		return conflictDisposition(item.ID, existing)
	}

	created, err := h.store.Create(item.TaskID, p)
	if err != nil {
		return errorDisposition(item.ID, "storage failure: "+err.Error())
	}
	return successDisposition(item.ID, created)
}

// applyUpdate replaces a task's fields. An update for a task the server
// never saw creates it, so reordered batches still converge. A stored
// version strictly newer than the payload is a conflict.
func (h *Handler) applyUpdate(item protocol.BatchItem, p *protocol.UpdatePayload, existing *RemoteTask) protocol.Disposition {
	if existing == nil {
		created, err := h.store.Create(item.TaskID, &protocol.CreatePayload{
			Title:       p.Title,
			Description: p.Description,
			Completed:   p.Completed,
			CreatedAt:   p.UpdatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
		if err != nil {
			return errorDisposition(item.ID, "storage failure: "+err.Error())
		}
		return successDisposition(item.ID, created)
	}

	if existing.UpdatedAt > p.UpdatedAt {
		return conflictDisposition(item.ID, existing)
	}

	updated, err := h.store.Update(existing, p)
	if err != nil {
		return errorDisposition(item.ID, "storage failure: "+err.Error())
	}
	return successDisposition(item.ID, updated)
}

// applyDelete soft-deletes a task. Deletion is idempotent: deleting an
// already-deleted or never-seen task succeeds.
func (h *Handler) applyDelete(item protocol.BatchItem, p *protocol.DeletePayload, existing *RemoteTask) protocol.Disposition {
	if existing == nil {
		// Nothing to delete; the outcome the client wanted holds.
		return protocol.Disposition{ID: item.ID, Status: protocol.StatusSuccess}
	}
	if existing.IsDeleted {
		return successDisposition(item.ID, existing)
	}

	deleted, err := h.store.Delete(existing, p.DeletedAt)
	if err != nil {
		return errorDisposition(item.ID, "storage failure: "+err.Error())
	}
	return successDisposition(item.ID, deleted)
}

func successDisposition(id string, t *RemoteTask) protocol.Disposition {
	return protocol.Disposition{
		ID:       id,
		Status:   protocol.StatusSuccess,
		RemoteID: t.RemoteID,
		Task:     t.Snapshot(),
	}
}

func conflictDisposition(id string, t *RemoteTask) protocol.Disposition {
	return protocol.Disposition{
		ID:       id,
		Status:   protocol.StatusConflict,
		RemoteID: t.RemoteID,
		Task:     t.Snapshot(),
	}
}

func errorDisposition(id, message string) protocol.Disposition {
	return protocol.Disposition{
		ID:     id,
		Status: protocol.StatusError,
		Error:  message,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("Failed to encode response", err, nil)
	}
}
