package domain

// =============================================================================
// Severity
// =============================================================================

// Severity classifies a validation issue. Only errors block a migration.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// =============================================================================
// ValidationIssue
// =============================================================================

// ValidationIssue is one classified finding about the feasibility of a
// migration. IDs are locally unique within a single ValidationResult and
// carry no meaning beyond it.
type ValidationIssue struct {
	ID              string   `json:"id"`
	Severity        Severity `json:"severity"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	RecordID        string   `json:"recordId,omitempty"`
	RecordLink      string   `json:"recordLink,omitempty"`
	Field           string   `json:"field,omitempty"`
	SuggestedAction string   `json:"suggestedAction,omitempty"`
	ParentRecordID  string   `json:"parentRecordId,omitempty"`
}

// =============================================================================
// ValidationResult
// =============================================================================

// ValidationSummary holds per-severity issue counts. The counts always equal
// the severity partition sizes of the issue list they summarize.
type ValidationSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// ValidationResult aggregates all issues for one validation call. It is
// constructed fresh per request, returned once, and never persisted.
type ValidationResult struct {
	IsValid     bool              `json:"isValid"`
	HasErrors   bool              `json:"hasErrors"`
	HasWarnings bool              `json:"hasWarnings"`
	Issues      []ValidationIssue `json:"issues"`
	Summary     ValidationSummary `json:"summary"`
}

// NewValidationResult builds a result from a list of issues, deriving the
// summary counts and validity flags. A migration is valid iff it has zero
// errors; warnings and info never block.
func NewValidationResult(issues []ValidationIssue) ValidationResult {
	if issues == nil {
		issues = []ValidationIssue{}
	}

	var summary ValidationSummary
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			summary.Errors++
		case SeverityWarning:
			summary.Warnings++
		case SeverityInfo:
			summary.Info++
		}
	}

	return ValidationResult{
		IsValid:     summary.Errors == 0,
		HasErrors:   summary.Errors > 0,
		HasWarnings: summary.Warnings > 0,
		Issues:      issues,
		Summary:     summary,
	}
}
