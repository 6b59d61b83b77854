// Package transport implements the HTTP client side of the batch sync
// exchange and the connectivity probe.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/taskdock/taskdock/internal/errors"
	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/models"
	"github.com/taskdock/taskdock/internal/sync/protocol"
)

const (
	// BatchPath is the sync exchange endpoint on the remote peer.
	BatchPath = "/api/v1/sync/batch"

	// HealthPath is the liveness endpoint used by the probe.
	HealthPath = "/healthz"
)

// Client sends batches of queued mutations to the remote peer. Any
// network, timeout, or malformed-response failure fails the whole batch
// as a unit; partial success never comes out of Send.
type Client struct {
	baseURL string
	http    *http.Client
	probe   *http.Client
}

// NewClient creates a Client from sync settings.
func NewClient(cfg config.SyncConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		probe:   &http.Client{Timeout: cfg.ProbeTimeout},
	}
}

// CheckConnectivity probes the remote liveness endpoint. It resolves
// every failure, timeout included, to false; no error escapes.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return false
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		logging.Debug("Connectivity probe failed", map[string]interface{}{
			"endpoint": c.baseURL,
			"error":    err.Error(),
		})
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Send exchanges one batch of queue items for their dispositions. The
// returned response is validated against the submitted items before it
// reaches the caller; a response that fails validation is a transport
// failure for the entire batch.
func (c *Client) Send(ctx context.Context, items []*models.QueueItem) (*protocol.BatchResponse, error) {
	if len(items) == 0 {
		return &protocol.BatchResponse{}, nil
	}

	request := protocol.NewBatchRequest(items)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncTransport, "failed to encode batch request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+BatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncTransport, "failed to build batch request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncTransport, "batch request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrSyncTransport,
			fmt.Sprintf("batch request returned status %d", resp.StatusCode))
	}

	var response protocol.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncMalformed, "failed to decode batch response", err)
	}

	if err := response.Validate(request.Items); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncMalformed, "batch response failed validation", err)
	}

	logging.Debug("Batch exchanged", map[string]interface{}{
		"submitted":    len(items),
		"dispositions": len(response.Dispositions),
	})

	return &response, nil
}
