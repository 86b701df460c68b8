package domain

import "time"

// =============================================================================
// Usage Event Types
// =============================================================================

// EventType represents the type of usage event.
type EventType string

const (
	// EventMigrationValidated is recorded when a validation run completes,
	// whatever its verdict.
	EventMigrationValidated EventType = "migration.validated"

	// EventOrgConnected is recorded when an org is registered.
	EventOrgConnected EventType = "org.connected"

	// EventOrgDisconnected is recorded when an org is removed.
	EventOrgDisconnected EventType = "org.disconnected"
)

// UsageEvent represents an analytics event. Events are stored locally and
// batch-reported to the analytics endpoint in the background; recording is
// always best-effort and never affects the operation being recorded.
type UsageEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// UserID is the user who triggered the event.
	UserID string `json:"user_id"`

	// EventType is the type of usage event.
	EventType EventType `json:"event_type"`

	// ResourceID is the ID of the primary resource (e.g., template ID).
	ResourceID string `json:"resource_id"`

	// ResourceType is the type of resource (e.g., "template").
	ResourceType string `json:"resource_type"`

	// Metadata contains additional event data.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ReportedAt is when the event was reported (nil if unreported).
	ReportedAt *time.Time `json:"reported_at,omitempty"`

	// CreatedAt is when the event record was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewUsageEvent creates a new usage event with sensible defaults.
func NewUsageEvent(id, userID string, eventType EventType, resourceID, resourceType string) UsageEvent {
	now := time.Now()
	return UsageEvent{
		ID:           id,
		UserID:       userID,
		EventType:    eventType,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Metadata:     make(map[string]string),
		Timestamp:    now,
		CreatedAt:    now,
	}
}

// WithMetadata adds metadata to the event and returns it for chaining.
func (e UsageEvent) WithMetadata(key, value string) UsageEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsReported returns true if the event has been reported.
func (e UsageEvent) IsReported() bool {
	return e.ReportedAt != nil
}
