package api

import (
	"time"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// ValidateMigrationRequest is the request body for POST /api/v1/migrations/validate.
// SelectedRecordNames maps record IDs to display names and is echoed back
// unchanged in the response.
type ValidateMigrationRequest struct {
	SourceOrgID         string            `json:"sourceOrgId"`
	TargetOrgID         string            `json:"targetOrgId"`
	TemplateID          string            `json:"templateId"`
	SelectedRecords     []string          `json:"selectedRecords"`
	SelectedRecordNames map[string]string `json:"selectedRecordNames,omitempty"`
}

// ConnectOrgRequest is the request body for POST /api/v1/orgs.
type ConnectOrgRequest struct {
	Name        string `json:"name"`
	InstanceURL string `json:"instanceUrl"`
	Environment string `json:"environment"`
	APIVersion  string `json:"apiVersion,omitempty"`
	AccessToken string `json:"accessToken"`
}

// =============================================================================
// Response Types
// =============================================================================

// ValidateMigrationResponse is the response body for POST /api/v1/migrations/validate.
type ValidateMigrationResponse struct {
	Success             bool                    `json:"success"`
	Validation          domain.ValidationResult `json:"validation"`
	SelectedRecordNames map[string]string       `json:"selectedRecordNames,omitempty"`
}

// OrgResponse is the wire representation of a connected org. Credentials are
// never included.
type OrgResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	InstanceURL string    `json:"instanceUrl"`
	Environment string    `json:"environment"`
	APIVersion  string    `json:"apiVersion"`
	ConnectedAt time.Time `json:"connectedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OrgListResponse is the response body for GET /api/v1/orgs.
type OrgListResponse struct {
	Orgs  []OrgResponse `json:"orgs"`
	Count int           `json:"count"`
}

// TemplateResponse is the wire representation of a migration template.
type TemplateResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Object      string   `json:"object"`
	Checks      []string `json:"checks"`
}

// TemplateListResponse is the response body for GET /api/v1/templates.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Count     int                `json:"count"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response body for GET /ready.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error envelope for all endpoints.
type ErrorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code,omitempty"`
	Details      string `json:"details,omitempty"`
	ReconnectURL string `json:"reconnectUrl,omitempty"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// =============================================================================
// Conversions
// =============================================================================

func orgToResponse(org *domain.Org) OrgResponse {
	return OrgResponse{
		ID:          org.ID,
		Name:        org.Name,
		InstanceURL: org.InstanceURL,
		Environment: string(org.Environment),
		APIVersion:  org.APIVersion,
		ConnectedAt: org.ConnectedAt,
		CreatedAt:   org.CreatedAt,
		UpdatedAt:   org.UpdatedAt,
	}
}

func templateToResponse(tmpl *domain.Template) TemplateResponse {
	checks := make([]string, 0, len(tmpl.Checks))
	for _, c := range tmpl.Checks {
		checks = append(checks, c.Rule)
	}
	return TemplateResponse{
		ID:          tmpl.ID,
		Name:        tmpl.Name,
		Description: tmpl.Description,
		Version:     tmpl.Version,
		Object:      tmpl.PrimaryObject(),
		Checks:      checks,
	}
}
