package validation

import (
	"fmt"
	"strings"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Engine Output
// =============================================================================

// CheckFinding is one pre-formatted finding produced by a validation engine
// check. Field is optional; when a rule does not set it the report builder
// falls back to deriving it from the check title.
type CheckFinding struct {
	Check           string
	Message         string
	RecordID        string
	RecordLink      string
	Field           string
	SuggestedAction string
	ParentRecordID  string
}

// EngineOutput is the three classified, ordered finding sequences produced
// by one validation engine run.
type EngineOutput struct {
	Errors   []CheckFinding
	Warnings []CheckFinding
	Info     []CheckFinding
}

// =============================================================================
// Report Assembly
// =============================================================================

// LargeBatchThreshold is the selected-record count above which a validation
// report gains an extra risk warning.
const LargeBatchThreshold = 200

// LargeBatchWarningID is the fixed issue ID of that warning.
const LargeBatchWarningID = "large-batch-warning"

const (
	invalidValuesPrefix = "Invalid "
	invalidValuesSuffix = " Values"
)

// DeriveField extracts a field name from check titles shaped like
// "Invalid <Field> Values". Titles that do not match yield an empty string;
// this is a display convenience only.
func DeriveField(title string) string {
	if !strings.HasPrefix(title, invalidValuesPrefix) || !strings.HasSuffix(title, invalidValuesSuffix) {
		return ""
	}
	field := strings.TrimSuffix(strings.TrimPrefix(title, invalidValuesPrefix), invalidValuesSuffix)
	return strings.TrimSpace(field)
}

// BuildReport assembles a ValidationResult from engine output, assigning
// locally-unique issue IDs per severity and applying the large-batch
// heuristic for the given selected-record count.
func BuildReport(out EngineOutput, selectedCount int) domain.ValidationResult {
	issues := make([]domain.ValidationIssue, 0, len(out.Errors)+len(out.Warnings)+len(out.Info)+1)

	for i, f := range out.Errors {
		issues = append(issues, findingToIssue(f, domain.SeverityError, fmt.Sprintf("error-%d", i+1)))
	}
	for i, f := range out.Warnings {
		issues = append(issues, findingToIssue(f, domain.SeverityWarning, fmt.Sprintf("warning-%d", i+1)))
	}
	for i, f := range out.Info {
		issues = append(issues, findingToIssue(f, domain.SeverityInfo, fmt.Sprintf("info-%d", i+1)))
	}

	if selectedCount > LargeBatchThreshold {
		issues = append(issues, LargeBatchWarning(selectedCount))
	}

	return domain.NewValidationResult(issues)
}

// LargeBatchWarning builds the fixed warning issue appended when a
// validation run covers more than LargeBatchThreshold records.
func LargeBatchWarning(selectedCount int) domain.ValidationIssue {
	return domain.ValidationIssue{
		ID:          LargeBatchWarningID,
		Severity:    domain.SeverityWarning,
		Title:       "Large Batch Size",
		Description: fmt.Sprintf("You selected %d records. Large batches carry elevated migration risk and may hit org API limits.", selectedCount),
		SuggestedAction: fmt.Sprintf("Consider splitting the migration into batches of %d records or fewer.", LargeBatchThreshold),
	}
}

// SelectionFailureReport builds the short-circuit ValidationResult returned
// when the record-selection pre-check fails: one error issue per invalid
// record and nothing else. The validation engine is never consulted for
// these runs.
func SelectionFailureReport(outcome domain.RecordValidationOutcome, expectedObject string, recordLink func(recordID string) string) domain.ValidationResult {
	issues := make([]domain.ValidationIssue, 0, len(outcome.InvalidRecords))

	for i, recordID := range outcome.InvalidRecords {
		issue := domain.ValidationIssue{
			ID:          fmt.Sprintf("error-%d", i+1),
			Severity:    domain.SeverityError,
			Title:       "Invalid Record Selection",
			Description: outcome.Errors[i],
			RecordID:    recordID,
			SuggestedAction: fmt.Sprintf("Verify the record exists in the source org and is a %s record.", expectedObject),
		}
		if recordLink != nil {
			issue.RecordLink = recordLink(recordID)
		}
		issues = append(issues, issue)
	}

	return domain.NewValidationResult(issues)
}

func findingToIssue(f CheckFinding, severity domain.Severity, id string) domain.ValidationIssue {
	field := f.Field
	if field == "" {
		field = DeriveField(f.Check)
	}
	return domain.ValidationIssue{
		ID:              id,
		Severity:        severity,
		Title:           f.Check,
		Description:     f.Message,
		RecordID:        f.RecordID,
		RecordLink:      f.RecordLink,
		Field:           field,
		SuggestedAction: f.SuggestedAction,
		ParentRecordID:  f.ParentRecordID,
	}
}
