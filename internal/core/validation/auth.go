package validation

import "strings"

// =============================================================================
// Auth Failure Detection
// =============================================================================

// authErrorMarkers are the substrings, matched case-insensitively, that
// identify an expired or invalid org session in propagated error text.
var authErrorMarkers = []string{
	"invalid_grant",
	"invalid_session_id",
	"expired",
	"not connected",
}

// IsAuthError reports whether an error message propagated from a downstream
// org call indicates an expired or invalid session. Such failures are
// remapped to a reconnect-required response instead of leaking raw provider
// error text.
func IsAuthError(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range authErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
