package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgshift/orgshift/internal/core/crypto"
	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", crypto.DeriveKey("test-store-key"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func createTestOrg(t *testing.T, s Store) *domain.Org {
	t.Helper()
	org, err := domain.NewOrg("Test Org", "https://acme.example.com", "tok-secret", domain.EnvProduction)
	require.NoError(t, err)

	require.NoError(t, s.CreateOrg(context.Background(), org))
	return org
}

func createTestTemplate(t *testing.T, s Store) *domain.Template {
	t.Helper()
	now := time.Now().UTC()
	template := &domain.Template{
		ID:      "tmpl_test",
		Name:    "Test Template",
		Version: "1.0.0",
		Steps: []domain.ETLStep{
			{Name: "extract", Kind: domain.StepExtract, Extract: domain.ExtractConfig{
				Object: "Product2",
				Fields: []string{"Name", "ProductCode"},
			}},
		},
		Checks: []domain.CheckConfig{
			{Rule: "target-object-exists"},
			{Rule: "field-values", Fields: []string{"ProductCode"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, s.CreateTemplate(context.Background(), template))
	return template
}

func createTestEvent(t *testing.T, s Store, id string) *domain.UsageEvent {
	t.Helper()
	event := domain.NewUsageEvent(id, "user-1", domain.EventMigrationValidated, "tmpl_test", "template")
	event = event.WithMetadata("record_count", "3")

	require.NoError(t, s.CreateUsageEvent(context.Background(), &event))
	return &event
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewSQLiteStore_KeyTooShort(t *testing.T) {
	_, err := NewSQLiteStore(":memory:", []byte("short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncryptionFailed)
}

// =============================================================================
// Org Tests
// =============================================================================

func TestCreateOrg_Success(t *testing.T) {
	s := setupTestStore(t)
	org := createTestOrg(t, s)

	got, err := s.GetOrg(context.Background(), org.ID)
	require.NoError(t, err)

	assert.Equal(t, org.ID, got.ID)
	assert.Equal(t, "Test Org", got.Name)
	assert.Equal(t, "https://acme.example.com", got.InstanceURL)
	assert.Equal(t, domain.EnvProduction, got.Environment)
	assert.Equal(t, "tok-secret", got.AccessToken, "token must round-trip through encryption")
}

func TestCreateOrg_TokenEncryptedAtRest(t *testing.T) {
	s := setupTestStore(t)
	org := createTestOrg(t, s)

	var stored string
	require.NoError(t, s.db.Get(&stored, `SELECT access_token FROM orgs WHERE id = ?`, org.ID))
	assert.NotEqual(t, "tok-secret", stored)
	assert.NotContains(t, stored, "tok-secret")
}

func TestCreateOrg_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	org := createTestOrg(t, s)

	err := s.CreateOrg(context.Background(), org)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetOrg_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetOrg(context.Background(), "org_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestUpdateOrg_Success(t *testing.T) {
	s := setupTestStore(t)
	org := createTestOrg(t, s)

	org.Name = "Renamed"
	org.AccessToken = "tok-rotated"
	require.NoError(t, s.UpdateOrg(context.Background(), org))

	got, err := s.GetOrg(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "tok-rotated", got.AccessToken)
}

func TestUpdateOrg_NotFound(t *testing.T) {
	s := setupTestStore(t)

	org, err := domain.NewOrg("Ghost", "https://ghost.example.com", "tok", domain.EnvSandbox)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateOrg(context.Background(), org), ErrNotFound)
}

func TestDeleteOrg_Success(t *testing.T) {
	s := setupTestStore(t)
	org := createTestOrg(t, s)

	require.NoError(t, s.DeleteOrg(context.Background(), org.ID))

	_, err := s.GetOrg(context.Background(), org.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOrg_NotFound(t *testing.T) {
	s := setupTestStore(t)
	assert.ErrorIs(t, s.DeleteOrg(context.Background(), "org_missing"), ErrNotFound)
}

func TestListOrgs_Success(t *testing.T) {
	s := setupTestStore(t)
	createTestOrg(t, s)

	org2, err := domain.NewOrg("Second", "https://second.example.com", "tok-2", domain.EnvSandbox)
	require.NoError(t, err)
	require.NoError(t, s.CreateOrg(context.Background(), org2))

	orgs, err := s.ListOrgs(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestListOrgs_Empty(t *testing.T) {
	s := setupTestStore(t)

	orgs, err := s.ListOrgs(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

// =============================================================================
// Template Tests
// =============================================================================

func TestCreateTemplate_Success(t *testing.T) {
	s := setupTestStore(t)
	template := createTestTemplate(t, s)

	got, err := s.GetTemplate(context.Background(), template.ID)
	require.NoError(t, err)

	assert.Equal(t, "Test Template", got.Name)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, domain.StepExtract, got.Steps[0].Kind)
	assert.Equal(t, "Product2", got.Steps[0].Extract.Object)
	assert.Equal(t, []string{"Name", "ProductCode"}, got.Steps[0].Extract.Fields)
	require.Len(t, got.Checks, 2)
	assert.Equal(t, "field-values", got.Checks[1].Rule)
}

func TestCreateTemplate_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	template := createTestTemplate(t, s)

	err := s.CreateTemplate(context.Background(), template)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetTemplate_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetTemplate(context.Background(), "tmpl_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTemplates_WithPagination(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()
	for _, id := range []string{"tmpl_a", "tmpl_b", "tmpl_c"} {
		template := &domain.Template{
			ID:        id,
			Name:      id,
			Version:   "1.0.0",
			Steps:     []domain.ETLStep{{Name: "extract", Kind: domain.StepExtract, Extract: domain.ExtractConfig{Object: "Product2"}}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, s.CreateTemplate(context.Background(), template))
	}

	page, err := s.ListTemplates(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListTemplates(context.Background(), ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

// =============================================================================
// Usage Event Tests
// =============================================================================

func TestCreateUsageEvent_Success(t *testing.T) {
	s := setupTestStore(t)
	createTestEvent(t, s, "evt_1")

	events, err := s.GetUnreportedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "evt_1", events[0].ID)
	assert.Equal(t, domain.EventMigrationValidated, events[0].EventType)
	assert.Equal(t, "3", events[0].Metadata["record_count"])
	assert.Nil(t, events[0].ReportedAt)
}

func TestMarkEventsReported_Success(t *testing.T) {
	s := setupTestStore(t)
	createTestEvent(t, s, "evt_1")
	createTestEvent(t, s, "evt_2")
	createTestEvent(t, s, "evt_3")

	require.NoError(t, s.MarkEventsReported(context.Background(), []string{"evt_1", "evt_2"}, time.Now().UTC()))

	events, err := s.GetUnreportedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_3", events[0].ID)
}

func TestMarkEventsReported_EmptyIDs(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.MarkEventsReported(context.Background(), nil, time.Now()))
}

func TestGetUnreportedEvents_RespectsLimit(t *testing.T) {
	s := setupTestStore(t)
	for i, id := range []string{"evt_1", "evt_2", "evt_3"} {
		event := domain.NewUsageEvent(id, "user-1", domain.EventMigrationValidated, "tmpl_test", "template")
		event.CreatedAt = event.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateUsageEvent(context.Background(), &event))
	}

	events, err := s.GetUnreportedEvents(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// =============================================================================
// ListOptions Tests
// =============================================================================

func TestListOptions_Normalize(t *testing.T) {
	opts := ListOptions{Limit: -5, Offset: -1}.Normalize()
	assert.Equal(t, 100, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	opts = ListOptions{Limit: 5000}.Normalize()
	assert.Equal(t, 1000, opts.Limit)

	opts = ListOptions{Limit: 50, Offset: 10}.Normalize()
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 10, opts.Offset)
}
