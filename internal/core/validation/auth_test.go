package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// IsAuthError Tests
// =============================================================================

func TestIsAuthError_KnownMarkers(t *testing.T) {
	assert.True(t, IsAuthError("invalid_grant: token revoked"))
	assert.True(t, IsAuthError("session expired, please log in again"))
	assert.True(t, IsAuthError(`[{"errorCode":"INVALID_SESSION_ID","message":"Session expired or invalid"}]`))
	assert.True(t, IsAuthError("org is not connected"))
}

func TestIsAuthError_CaseInsensitive(t *testing.T) {
	assert.True(t, IsAuthError("INVALID_GRANT"))
	assert.True(t, IsAuthError("Token Expired"))
}

func TestIsAuthError_OtherErrors(t *testing.T) {
	assert.False(t, IsAuthError("connection refused"))
	assert.False(t, IsAuthError("MALFORMED_QUERY: unexpected token"))
	assert.False(t, IsAuthError(""))
}
