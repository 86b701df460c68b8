package validation

// ValidateMigrationInputs checks that a validation request names both orgs, a
// template, and at least one record. Returns the offending field and a
// human-readable message, or empty strings when the inputs are complete.
func ValidateMigrationInputs(sourceOrgID, targetOrgID, templateID string, selectedRecords []string) (field, message string) {
	if sourceOrgID == "" {
		return "sourceOrgId", "source org is required"
	}
	if targetOrgID == "" {
		return "targetOrgId", "target org is required"
	}
	if sourceOrgID == targetOrgID {
		return "targetOrgId", "source and target orgs must be different"
	}
	if templateID == "" {
		return "templateId", "migration template is required"
	}
	if len(selectedRecords) == 0 {
		return "selectedRecords", "at least one record must be selected"
	}
	for _, id := range selectedRecords {
		if id == "" {
			return "selectedRecords", "record ids must not be empty"
		}
	}
	return "", ""
}
