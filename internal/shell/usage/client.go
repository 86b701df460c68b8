// Package usage provides best-effort analytics for validation runs. Events
// are recorded through a background channel, stored locally, and batch
// reported to an analytics endpoint. No failure in this package may affect
// the operation being recorded.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the interface for delivering usage events to the analytics
// endpoint.
type Client interface {
	// SendBatch reports multiple usage events at once.
	SendBatch(ctx context.Context, events []domain.UsageEvent) error
}

// =============================================================================
// HTTP Client Implementation
// =============================================================================

// HTTPClient implements Client for an HTTP analytics endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration for the analytics client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPClient creates a new analytics client.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// eventPayload is the wire shape of a single event.
type eventPayload struct {
	EventID      string            `json:"event_id"`
	UserID       string            `json:"user_id"`
	EventType    string            `json:"event_type"`
	ResourceID   string            `json:"resource_id"`
	ResourceType string            `json:"resource_type"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

// batchRequest is the request body for the batch endpoint.
type batchRequest struct {
	Events []eventPayload `json:"events"`
}

// SendBatch reports multiple usage events to the analytics endpoint.
func (c *HTTPClient) SendBatch(ctx context.Context, events []domain.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	payload := batchRequest{Events: make([]eventPayload, len(events))}
	for i, event := range events {
		payload.Events[i] = eventPayload{
			EventID:      event.ID,
			UserID:       event.UserID,
			EventType:    string(event.EventType),
			ResourceID:   event.ResourceID,
			ResourceType: event.ResourceType,
			Metadata:     event.Metadata,
			Timestamp:    event.Timestamp.Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal usage events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/events/batch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analytics endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// =============================================================================
// No-op Client
// =============================================================================

// NoopClient implements Client without sending anything. Used when no
// analytics endpoint is configured.
type NoopClient struct {
	logger *slog.Logger
}

// NewNoopClient creates a no-op analytics client.
func NewNoopClient(logger *slog.Logger) *NoopClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopClient{logger: logger}
}

// SendBatch logs and discards the events.
func (c *NoopClient) SendBatch(ctx context.Context, events []domain.UsageEvent) error {
	c.logger.Debug("discarding usage events (no analytics endpoint configured)", "count", len(events))
	return nil
}
