package store

import (
	"context"
	"time"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for OrgShift entities.
type Store interface {
	// Org operations
	CreateOrg(ctx context.Context, org *domain.Org) error
	GetOrg(ctx context.Context, id string) (*domain.Org, error)
	UpdateOrg(ctx context.Context, org *domain.Org) error
	DeleteOrg(ctx context.Context, id string) error
	ListOrgs(ctx context.Context, opts ListOptions) ([]domain.Org, error)

	// Template operations
	CreateTemplate(ctx context.Context, template *domain.Template) error
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
	ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error)

	// Usage event operations
	CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error
	GetUnreportedEvents(ctx context.Context, limit int) ([]domain.UsageEvent, error)
	MarkEventsReported(ctx context.Context, ids []string, reportedAt time.Time) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
