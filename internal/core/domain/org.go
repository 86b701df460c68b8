// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Org validation errors
	ErrOrgNameRequired        = errors.New("org name is required")
	ErrInstanceURLRequired    = errors.New("instance URL is required")
	ErrInstanceURLInvalid     = errors.New("instance URL must be a valid http(s) URL")
	ErrAccessTokenRequired    = errors.New("access token is required")
	ErrOrgEnvironmentInvalid  = errors.New("environment must be production or sandbox")
)

// =============================================================================
// Org Environment
// =============================================================================

// OrgEnvironment distinguishes production orgs from sandboxes.
type OrgEnvironment string

const (
	EnvProduction OrgEnvironment = "production"
	EnvSandbox    OrgEnvironment = "sandbox"
)

// IsValid checks if the environment is a known value.
func (e OrgEnvironment) IsValid() bool {
	switch e {
	case EnvProduction, EnvSandbox:
		return true
	default:
		return false
	}
}

// =============================================================================
// Org
// =============================================================================

// Org represents a connected organisation instance (source or target of a
// migration). The access token is encrypted at rest and never serialized.
type Org struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	InstanceURL string         `json:"instance_url"`
	Environment OrgEnvironment `json:"environment"`
	APIVersion  string         `json:"api_version"`
	AccessToken string         `json:"-"`
	ConnectedAt time.Time      `json:"connected_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewOrg creates a new connected org. Returns an error if validation fails.
func NewOrg(name, instanceURL, accessToken string, env OrgEnvironment) (*Org, error) {
	if err := ValidateOrgName(name); err != nil {
		return nil, err
	}
	if err := ValidateInstanceURL(instanceURL); err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, ErrAccessTokenRequired
	}
	if env == "" {
		env = EnvProduction
	}
	if !env.IsValid() {
		return nil, ErrOrgEnvironmentInvalid
	}

	now := time.Now().UTC()
	return &Org{
		ID:          "org_" + uuid.New().String()[:8],
		Name:        name,
		InstanceURL: strings.TrimRight(instanceURL, "/"),
		Environment: env,
		APIVersion:  DefaultAPIVersion,
		AccessToken: accessToken,
		ConnectedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DefaultAPIVersion is the org REST API version used when an org does not
// declare one.
const DefaultAPIVersion = "v58.0"

// RecordURL builds a deep link to a record in this org's web UI.
// Returns an empty string if the org has no instance URL or the record ID
// is empty.
func (o *Org) RecordURL(recordID string) string {
	if o.InstanceURL == "" || recordID == "" {
		return ""
	}
	return strings.TrimRight(o.InstanceURL, "/") + "/" + recordID
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

// ValidateOrgName validates an org display name.
func ValidateOrgName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrOrgNameRequired
	}
	return nil
}

// ValidateInstanceURL validates an org instance URL.
func ValidateInstanceURL(instanceURL string) error {
	if instanceURL == "" {
		return ErrInstanceURLRequired
	}
	u, err := url.Parse(instanceURL)
	if err != nil {
		return ErrInstanceURLInvalid
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInstanceURLInvalid
	}
	return nil
}
