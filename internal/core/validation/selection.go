package validation

import (
	"fmt"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Record Selection Pre-Check
// =============================================================================

// RecordStatus is what the source org reports about one selected record ID.
type RecordStatus struct {
	// Exists is true if the record ID resolved to a record.
	Exists bool

	// ObjectType is the API name of the record's object, when it exists.
	ObjectType string
}

// EvaluateRecordSelection classifies each selected record against the object
// type the template's first extract step requires. A record fails when it
// does not exist in the source org or when its object type differs from the
// expected one. IDs absent from statuses are treated as non-existent.
//
// The returned outcome keeps Errors and InvalidRecords index-aligned.
func EvaluateRecordSelection(expectedObject string, recordIDs []string, statuses map[string]RecordStatus) domain.RecordValidationOutcome {
	outcome := domain.NewRecordValidationOutcome()

	for _, id := range recordIDs {
		status, ok := statuses[id]
		if !ok || !status.Exists {
			outcome.AddInvalid(id, fmt.Sprintf("record %s does not exist in the source org", id))
			continue
		}
		if status.ObjectType != expectedObject {
			outcome.AddInvalid(id, fmt.Sprintf("record %s is a %s record, expected %s", id, status.ObjectType, expectedObject))
		}
	}

	return outcome
}
