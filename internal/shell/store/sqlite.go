package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/orgshift/orgshift/internal/core/crypto"
	"github.com/orgshift/orgshift/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite. Org access tokens are encrypted
// with AES-256-GCM before they touch disk; domain.Org values passed in and
// out always carry the plaintext token.
type SQLiteStore struct {
	db            *sqlx.DB
	encryptionKey []byte
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
// encryptionKey must be at least 32 bytes.
func NewSQLiteStore(dsn string, encryptionKey []byte) (*SQLiteStore, error) {
	if len(encryptionKey) < 32 {
		return nil, NewStoreError("NewSQLiteStore", "", "", "encryption key must be at least 32 bytes", ErrEncryptionFailed)
	}

	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db, encryptionKey: encryptionKey}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Org Operations
// =============================================================================

// orgRow represents an org row in the database.
type orgRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	InstanceURL string `db:"instance_url"`
	Environment string `db:"environment"`
	APIVersion  string `db:"api_version"`
	AccessToken string `db:"access_token"`
	ConnectedAt string `db:"connected_at"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (s *SQLiteStore) CreateOrg(ctx context.Context, org *domain.Org) error {
	token, err := crypto.EncryptToBase64([]byte(org.AccessToken), s.encryptionKey)
	if err != nil {
		return NewStoreError("CreateOrg", "org", org.ID, "failed to encrypt access token", ErrEncryptionFailed)
	}

	query := `
		INSERT INTO orgs (
			id, name, instance_url, environment, api_version, access_token,
			connected_at, created_at, updated_at
		) VALUES (
			:id, :name, :instance_url, :environment, :api_version, :access_token,
			:connected_at, :created_at, :updated_at
		)`

	row := map[string]any{
		"id":           org.ID,
		"name":         org.Name,
		"instance_url": org.InstanceURL,
		"environment":  string(org.Environment),
		"api_version":  org.APIVersion,
		"access_token": token,
		"connected_at": org.ConnectedAt.Format(time.RFC3339),
		"created_at":   org.CreatedAt.Format(time.RFC3339),
		"updated_at":   org.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: orgs.id") {
			return NewStoreError("CreateOrg", "org", org.ID, "org with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateOrg", "org", org.ID, err.Error(), err)
	}

	return nil
}

func (s *SQLiteStore) GetOrg(ctx context.Context, id string) (*domain.Org, error) {
	query := `SELECT * FROM orgs WHERE id = ?`

	var row orgRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetOrg", "org", id, "org not found", ErrNotFound)
		}
		return nil, NewStoreError("GetOrg", "org", id, err.Error(), err)
	}

	return s.rowToOrg(&row)
}

func (s *SQLiteStore) UpdateOrg(ctx context.Context, org *domain.Org) error {
	token, err := crypto.EncryptToBase64([]byte(org.AccessToken), s.encryptionKey)
	if err != nil {
		return NewStoreError("UpdateOrg", "org", org.ID, "failed to encrypt access token", ErrEncryptionFailed)
	}

	query := `
		UPDATE orgs SET
			name = :name, instance_url = :instance_url, environment = :environment,
			api_version = :api_version, access_token = :access_token,
			connected_at = :connected_at, updated_at = :updated_at
		WHERE id = :id`

	row := map[string]any{
		"id":           org.ID,
		"name":         org.Name,
		"instance_url": org.InstanceURL,
		"environment":  string(org.Environment),
		"api_version":  org.APIVersion,
		"access_token": token,
		"connected_at": org.ConnectedAt.Format(time.RFC3339),
		"updated_at":   time.Now().UTC().Format(time.RFC3339),
	}

	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateOrg", "org", org.ID, err.Error(), err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return NewStoreError("UpdateOrg", "org", org.ID, "org not found", ErrNotFound)
	}

	return nil
}

func (s *SQLiteStore) DeleteOrg(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM orgs WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteOrg", "org", id, err.Error(), err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return NewStoreError("DeleteOrg", "org", id, "org not found", ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListOrgs(ctx context.Context, opts ListOptions) ([]domain.Org, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM orgs ORDER BY created_at LIMIT ? OFFSET ?`

	var rows []orgRow
	if err := s.db.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListOrgs", "org", "", err.Error(), err)
	}

	orgs := make([]domain.Org, 0, len(rows))
	for i := range rows {
		org, err := s.rowToOrg(&rows[i])
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	return orgs, nil
}

func (s *SQLiteStore) rowToOrg(row *orgRow) (*domain.Org, error) {
	token, err := crypto.DecryptFromBase64(row.AccessToken, s.encryptionKey)
	if err != nil {
		return nil, NewStoreError("rowToOrg", "org", row.ID, "failed to decrypt access token", ErrEncryptionFailed)
	}

	org := &domain.Org{
		ID:          row.ID,
		Name:        row.Name,
		InstanceURL: row.InstanceURL,
		Environment: domain.OrgEnvironment(row.Environment),
		APIVersion:  row.APIVersion,
		AccessToken: string(token),
	}
	org.ConnectedAt, _ = time.Parse(time.RFC3339, row.ConnectedAt)
	org.CreatedAt, _ = time.Parse(time.RFC3339, row.CreatedAt)
	org.UpdatedAt, _ = time.Parse(time.RFC3339, row.UpdatedAt)
	return org, nil
}

// =============================================================================
// Template Operations
// =============================================================================

// templateRow represents a template row in the database.
type templateRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Version     string  `db:"version"`
	Steps       string  `db:"steps"`
	Checks      *string `db:"checks"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
}

func (s *SQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	stepsJSON, err := json.Marshal(template.Steps)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.ID, "failed to serialize steps", ErrInvalidData)
	}
	checksJSON, err := json.Marshal(template.Checks)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.ID, "failed to serialize checks", ErrInvalidData)
	}

	query := `
		INSERT INTO templates (
			id, name, description, version, steps, checks, created_at, updated_at
		) VALUES (
			:id, :name, :description, :version, :steps, :checks, :created_at, :updated_at
		)`

	row := map[string]any{
		"id":          template.ID,
		"name":        template.Name,
		"description": template.Description,
		"version":     template.Version,
		"steps":       string(stepsJSON),
		"checks":      string(checksJSON),
		"created_at":  template.CreatedAt.Format(time.RFC3339),
		"updated_at":  template.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: templates.id") {
			return NewStoreError("CreateTemplate", "template", template.ID, "template with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateTemplate", "template", template.ID, err.Error(), err)
	}

	return nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE id = ?`

	var row templateRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTemplate", "template", id, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTemplate", "template", id, err.Error(), err)
	}

	return rowToTemplate(&row)
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM templates ORDER BY name LIMIT ? OFFSET ?`

	var rows []templateRow
	if err := s.db.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListTemplates", "template", "", err.Error(), err)
	}

	templates := make([]domain.Template, 0, len(rows))
	for i := range rows {
		t, err := rowToTemplate(&rows[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

func rowToTemplate(row *templateRow) (*domain.Template, error) {
	t := &domain.Template{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Version:     row.Version,
	}

	if err := json.Unmarshal([]byte(row.Steps), &t.Steps); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.ID, "failed to deserialize steps", ErrInvalidData)
	}
	if row.Checks != nil && *row.Checks != "" {
		if err := json.Unmarshal([]byte(*row.Checks), &t.Checks); err != nil {
			return nil, NewStoreError("rowToTemplate", "template", row.ID, "failed to deserialize checks", ErrInvalidData)
		}
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, row.CreatedAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, row.UpdatedAt)
	return t, nil
}

// =============================================================================
// Usage Event Operations
// =============================================================================

// usageEventRow represents a usage event row in the database.
type usageEventRow struct {
	ID           string  `db:"id"`
	UserID       string  `db:"user_id"`
	EventType    string  `db:"event_type"`
	ResourceID   string  `db:"resource_id"`
	ResourceType string  `db:"resource_type"`
	Metadata     *string `db:"metadata"`
	Timestamp    string  `db:"timestamp"`
	ReportedAt   *string `db:"reported_at"`
	CreatedAt    string  `db:"created_at"`
}

func (s *SQLiteStore) CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return NewStoreError("CreateUsageEvent", "usage_event", event.ID, "failed to serialize metadata", ErrInvalidData)
	}

	query := `
		INSERT INTO usage_events (
			id, user_id, event_type, resource_id, resource_type, metadata,
			timestamp, created_at
		) VALUES (
			:id, :user_id, :event_type, :resource_id, :resource_type, :metadata,
			:timestamp, :created_at
		)`

	row := map[string]any{
		"id":            event.ID,
		"user_id":       event.UserID,
		"event_type":    string(event.EventType),
		"resource_id":   event.ResourceID,
		"resource_type": event.ResourceType,
		"metadata":      string(metadataJSON),
		"timestamp":     event.Timestamp.Format(time.RFC3339),
		"created_at":    event.CreatedAt.Format(time.RFC3339),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: usage_events.id") {
			return NewStoreError("CreateUsageEvent", "usage_event", event.ID, "event with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateUsageEvent", "usage_event", event.ID, err.Error(), err)
	}

	return nil
}

func (s *SQLiteStore) GetUnreportedEvents(ctx context.Context, limit int) ([]domain.UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT * FROM usage_events WHERE reported_at IS NULL ORDER BY created_at LIMIT ?`

	var rows []usageEventRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("GetUnreportedEvents", "usage_event", "", err.Error(), err)
	}

	events := make([]domain.UsageEvent, 0, len(rows))
	for i := range rows {
		event, err := rowToUsageEvent(&rows[i])
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, nil
}

func (s *SQLiteStore) MarkEventsReported(ctx context.Context, ids []string, reportedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE usage_events SET reported_at = ? WHERE id IN (?)`,
		reportedAt.Format(time.RFC3339), ids)
	if err != nil {
		return NewStoreError("MarkEventsReported", "usage_event", "", err.Error(), err)
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return NewStoreError("MarkEventsReported", "usage_event", "", err.Error(), err)
	}
	return nil
}

func rowToUsageEvent(row *usageEventRow) (*domain.UsageEvent, error) {
	event := &domain.UsageEvent{
		ID:           row.ID,
		UserID:       row.UserID,
		EventType:    domain.EventType(row.EventType),
		ResourceID:   row.ResourceID,
		ResourceType: row.ResourceType,
	}

	if row.Metadata != nil && *row.Metadata != "" {
		if err := json.Unmarshal([]byte(*row.Metadata), &event.Metadata); err != nil {
			return nil, NewStoreError("rowToUsageEvent", "usage_event", row.ID, "failed to deserialize metadata", ErrInvalidData)
		}
	}

	event.Timestamp, _ = time.Parse(time.RFC3339, row.Timestamp)
	event.CreatedAt, _ = time.Parse(time.RFC3339, row.CreatedAt)
	if row.ReportedAt != nil && *row.ReportedAt != "" {
		t, err := time.Parse(time.RFC3339, *row.ReportedAt)
		if err == nil {
			event.ReportedAt = &t
		}
	}
	return event, nil
}
