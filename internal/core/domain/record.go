package domain

// =============================================================================
// Record Selection Outcome
// =============================================================================

// RecordValidationOutcome is the intermediate result of the record-selection
// pre-check. Errors and InvalidRecords are index-aligned: Errors[i] explains
// why InvalidRecords[i] failed.
type RecordValidationOutcome struct {
	Valid          bool
	Errors         []string
	InvalidRecords []string
}

// AddInvalid records one failed identifier with its explanation and marks
// the outcome invalid.
func (o *RecordValidationOutcome) AddInvalid(recordID, reason string) {
	o.Valid = false
	o.InvalidRecords = append(o.InvalidRecords, recordID)
	o.Errors = append(o.Errors, reason)
}

// NewRecordValidationOutcome returns an outcome that is valid until an
// invalid record is added.
func NewRecordValidationOutcome() RecordValidationOutcome {
	return RecordValidationOutcome{Valid: true}
}
