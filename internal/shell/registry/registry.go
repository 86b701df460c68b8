// Package registry resolves migration template definitions. Templates live
// in the store; the built-in set is seeded from embedded YAML files at
// startup. The registry is injected into consumers as an explicit
// dependency, never reached through package state.
package registry

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orgshift/orgshift/internal/core/domain"
	"github.com/orgshift/orgshift/internal/shell/store"
)

//go:embed templates/*.yaml
var seedFS embed.FS

// =============================================================================
// Registry
// =============================================================================

// Registry resolves template identifiers to template definitions.
type Registry interface {
	// Resolve returns the template with the given ID, or a not-found
	// store error.
	Resolve(ctx context.Context, id string) (*domain.Template, error)

	// List returns all known templates.
	List(ctx context.Context, opts store.ListOptions) ([]domain.Template, error)
}

// StoreRegistry implements Registry on top of the persistence layer.
type StoreRegistry struct {
	store  store.Store
	logger *slog.Logger
}

// NewStoreRegistry creates a registry backed by the given store.
func NewStoreRegistry(s store.Store, logger *slog.Logger) *StoreRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRegistry{
		store:  s,
		logger: logger.With("component", "template_registry"),
	}
}

// Resolve returns the template with the given ID.
func (r *StoreRegistry) Resolve(ctx context.Context, id string) (*domain.Template, error) {
	return r.store.GetTemplate(ctx, id)
}

// List returns all known templates.
func (r *StoreRegistry) List(ctx context.Context, opts store.ListOptions) ([]domain.Template, error) {
	return r.store.ListTemplates(ctx, opts)
}

// =============================================================================
// Seeding
// =============================================================================

// seedTemplate is the YAML shape of an embedded template file.
type seedTemplate struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Version     string               `yaml:"version"`
	Steps       []domain.ETLStep     `yaml:"steps"`
	Checks      []domain.CheckConfig `yaml:"checks"`
}

// Seed loads the embedded built-in templates into the store. Templates that
// already exist are left untouched.
func (r *StoreRegistry) Seed(ctx context.Context) error {
	entries, err := fs.ReadDir(seedFS, "templates")
	if err != nil {
		return fmt.Errorf("failed to read embedded templates: %w", err)
	}

	for _, entry := range entries {
		data, err := fs.ReadFile(seedFS, "templates/"+entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		var seed seedTemplate
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}

		template := seed.toDomain()
		if errs := domain.ValidateTemplate(template); len(errs) > 0 {
			return fmt.Errorf("invalid template %s: %w", entry.Name(), errors.Join(errs...))
		}

		if err := r.store.CreateTemplate(ctx, &template); err != nil {
			var storeErr *store.StoreError
			if errors.As(err, &storeErr) && errors.Is(storeErr.Unwrap(), store.ErrDuplicateID) {
				continue
			}
			return fmt.Errorf("failed to seed template %s: %w", template.ID, err)
		}
		r.logger.Info("seeded built-in template", "template_id", template.ID, "name", template.Name)
	}

	return nil
}

func (s seedTemplate) toDomain() domain.Template {
	now := time.Now().UTC()
	return domain.Template{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Version:     s.Version,
		Steps:       s.Steps,
		Checks:      s.Checks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
