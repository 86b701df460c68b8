package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// NewOrg Tests
// =============================================================================

func TestNewOrg_Valid(t *testing.T) {
	org, err := NewOrg("Production", "https://acme.example.com", "tok-123", EnvProduction)
	require.NoError(t, err)

	assert.NotEmpty(t, org.ID)
	assert.Contains(t, org.ID, "org_")
	assert.Equal(t, "Production", org.Name)
	assert.Equal(t, "https://acme.example.com", org.InstanceURL)
	assert.Equal(t, EnvProduction, org.Environment)
	assert.Equal(t, DefaultAPIVersion, org.APIVersion)
	assert.Equal(t, "tok-123", org.AccessToken)
	assert.False(t, org.ConnectedAt.IsZero())
}

func TestNewOrg_TrimsTrailingSlash(t *testing.T) {
	org, err := NewOrg("Sandbox", "https://acme.example.com/", "tok-123", EnvSandbox)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example.com", org.InstanceURL)
}

func TestNewOrg_DefaultsToProduction(t *testing.T) {
	org, err := NewOrg("Prod", "https://acme.example.com", "tok-123", "")
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, org.Environment)
}

func TestNewOrg_MissingName(t *testing.T) {
	_, err := NewOrg("", "https://acme.example.com", "tok-123", EnvProduction)
	assert.ErrorIs(t, err, ErrOrgNameRequired)
}

func TestNewOrg_MissingInstanceURL(t *testing.T) {
	_, err := NewOrg("Prod", "", "tok-123", EnvProduction)
	assert.ErrorIs(t, err, ErrInstanceURLRequired)
}

func TestNewOrg_InvalidInstanceURL(t *testing.T) {
	_, err := NewOrg("Prod", "not a url", "tok-123", EnvProduction)
	assert.ErrorIs(t, err, ErrInstanceURLInvalid)
}

func TestNewOrg_MissingAccessToken(t *testing.T) {
	_, err := NewOrg("Prod", "https://acme.example.com", "", EnvProduction)
	assert.ErrorIs(t, err, ErrAccessTokenRequired)
}

func TestNewOrg_InvalidEnvironment(t *testing.T) {
	_, err := NewOrg("Prod", "https://acme.example.com", "tok-123", "staging")
	assert.ErrorIs(t, err, ErrOrgEnvironmentInvalid)
}

// =============================================================================
// RecordURL Tests
// =============================================================================

func TestRecordURL_Builds(t *testing.T) {
	org := &Org{InstanceURL: "https://acme.example.com"}
	assert.Equal(t, "https://acme.example.com/rec-1", org.RecordURL("rec-1"))
}

func TestRecordURL_TrailingSlash(t *testing.T) {
	org := &Org{InstanceURL: "https://acme.example.com/"}
	assert.Equal(t, "https://acme.example.com/rec-1", org.RecordURL("rec-1"))
}

func TestRecordURL_Empty(t *testing.T) {
	org := &Org{}
	assert.Empty(t, org.RecordURL("rec-1"))

	org.InstanceURL = "https://acme.example.com"
	assert.Empty(t, org.RecordURL(""))
}
