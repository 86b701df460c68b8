package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orgshift/orgshift/internal/core/domain"
	"github.com/orgshift/orgshift/internal/core/validation"
	"github.com/orgshift/orgshift/internal/shell/orgapi"
)

// =============================================================================
// Built-in Rule Names
// =============================================================================

const (
	RuleTargetObjectExists    = "target-object-exists"
	RuleRequiredFieldsPresent = "required-fields-present"
	RuleFieldValues           = "field-values"
	RuleDuplicateRecords      = "duplicate-records"
	RuleMissingReferences     = "missing-references"
	RuleRecordSummary         = "record-summary"
)

// =============================================================================
// Rules
// =============================================================================

// checkTargetObjectExists verifies the migrated object exists and is
// queryable in the target org.
func checkTargetObjectExists(ctx context.Context, rc RuleContext) ([]Finding, error) {
	object := rc.Object()

	describe, err := rc.Client.DescribeObject(ctx, rc.TargetOrg, object)
	if err != nil {
		if errors.Is(err, orgapi.ErrObjectNotFound) {
			return []Finding{{
				Severity: domain.SeverityError,
				CheckFinding: validation.CheckFinding{
					Check:           "Missing Target Object",
					Message:         fmt.Sprintf("The target org has no %s object. The migration cannot load records into it.", object),
					SuggestedAction: fmt.Sprintf("Enable or create the %s object in the target org before migrating.", object),
				},
			}}, nil
		}
		return nil, err
	}

	if !describe.Queryable {
		return []Finding{{
			Severity: domain.SeverityWarning,
			CheckFinding: validation.CheckFinding{
				Check:           "Target Object Not Queryable",
				Message:         fmt.Sprintf("The %s object exists in the target org but is not queryable, so post-migration verification will be limited.", object),
				SuggestedAction: fmt.Sprintf("Review permissions on the %s object in the target org.", object),
			},
		}}, nil
	}

	return nil, nil
}

// checkRequiredFieldsPresent verifies every required, createable field of
// the source object also exists on the target object.
func checkRequiredFieldsPresent(ctx context.Context, rc RuleContext) ([]Finding, error) {
	object := rc.Object()

	source, err := rc.Client.DescribeObject(ctx, rc.SourceOrg, object)
	if err != nil {
		if errors.Is(err, orgapi.ErrObjectNotFound) {
			// The target-object rule reports missing objects; nothing to
			// compare here.
			return nil, nil
		}
		return nil, err
	}
	target, err := rc.Client.DescribeObject(ctx, rc.TargetOrg, object)
	if err != nil {
		if errors.Is(err, orgapi.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}

	targetFields := make(map[string]bool, len(target.Fields))
	for _, f := range target.Fields {
		targetFields[f.Name] = true
	}

	var findings []Finding
	for _, f := range source.Fields {
		if !f.Required || !f.Createable {
			continue
		}
		if targetFields[f.Name] {
			continue
		}
		findings = append(findings, Finding{
			Severity: domain.SeverityError,
			CheckFinding: validation.CheckFinding{
				Check:           "Missing Required Field",
				Message:         fmt.Sprintf("Field %s is required on %s in the source org but does not exist in the target org.", f.Name, object),
				Field:           f.Name,
				SuggestedAction: fmt.Sprintf("Create the %s field on %s in the target org.", f.Name, object),
			},
		})
	}

	return findings, nil
}

// checkFieldValues inspects the selected records in the source org and
// reports records whose checked fields are empty. Fields default to the
// target object's required fields when the check declares none.
func checkFieldValues(ctx context.Context, rc RuleContext) ([]Finding, error) {
	object := rc.Object()

	fields := rc.Check.Fields
	if len(fields) == 0 {
		target, err := rc.Client.DescribeObject(ctx, rc.TargetOrg, object)
		if err != nil {
			if errors.Is(err, orgapi.ErrObjectNotFound) {
				return nil, nil
			}
			return nil, err
		}
		for _, f := range target.Fields {
			if f.Required && f.Createable {
				fields = append(fields, f.Name)
			}
		}
	}
	if len(fields) == 0 || len(rc.RecordIDs) == 0 {
		return nil, nil
	}

	soql := fmt.Sprintf("SELECT Id, %s FROM %s WHERE Id IN %s",
		strings.Join(fields, ", "), object, quoteIn(rc.RecordIDs))
	result, err := rc.Client.Query(ctx, rc.SourceOrg, soql)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, rec := range result.Records {
		recordID := stringField(rec, "Id")
		for _, field := range fields {
			if value := stringField(rec, field); value != "" {
				continue
			}
			findings = append(findings, Finding{
				Severity: domain.SeverityError,
				CheckFinding: validation.CheckFinding{
					Check:           fmt.Sprintf("Invalid %s Values", field),
					Message:         fmt.Sprintf("Record %s has no value for %s, which the target org requires.", recordID, field),
					RecordID:        recordID,
					RecordLink:      rc.SourceOrg.RecordURL(recordID),
					Field:           field,
					SuggestedAction: fmt.Sprintf("Populate %s on this record before migrating.", field),
				},
			})
		}
	}

	return findings, nil
}

// checkDuplicateRecords warns when the target org already holds records with
// the same Name as a selected source record.
func checkDuplicateRecords(ctx context.Context, rc RuleContext) ([]Finding, error) {
	object := rc.Object()
	if len(rc.RecordIDs) == 0 {
		return nil, nil
	}

	soql := fmt.Sprintf("SELECT Id, Name FROM %s WHERE Id IN %s", object, quoteIn(rc.RecordIDs))
	source, err := rc.Client.Query(ctx, rc.SourceOrg, soql)
	if err != nil {
		return nil, err
	}

	nameToRecord := make(map[string]string, len(source.Records))
	var names []string
	for _, rec := range source.Records {
		name := stringField(rec, "Name")
		if name == "" {
			continue
		}
		if _, seen := nameToRecord[name]; !seen {
			names = append(names, name)
		}
		nameToRecord[name] = stringField(rec, "Id")
	}
	if len(names) == 0 {
		return nil, nil
	}

	soql = fmt.Sprintf("SELECT Id, Name FROM %s WHERE Name IN %s", object, quoteIn(names))
	target, err := rc.Client.Query(ctx, rc.TargetOrg, soql)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, rec := range target.Records {
		name := stringField(rec, "Name")
		sourceID, ok := nameToRecord[name]
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Severity: domain.SeverityWarning,
			CheckFinding: validation.CheckFinding{
				Check:           "Duplicate Records",
				Message:         fmt.Sprintf("The target org already has a %s named %q (%s). Migrating may create a duplicate.", object, name, stringField(rec, "Id")),
				RecordID:        sourceID,
				RecordLink:      rc.SourceOrg.RecordURL(sourceID),
				Field:           "Name",
				SuggestedAction: "Rename or exclude the record, or clean up the duplicate in the target org.",
			},
		})
	}

	return findings, nil
}

// checkMissingReferences follows the reference fields of the selected
// records and reports referenced records that do not exist in the target
// org. Findings carry the selected record as parent.
func checkMissingReferences(ctx context.Context, rc RuleContext) ([]Finding, error) {
	object := rc.Object()
	if len(rc.RecordIDs) == 0 {
		return nil, nil
	}

	describe, err := rc.Client.DescribeObject(ctx, rc.SourceOrg, object)
	if err != nil {
		if errors.Is(err, orgapi.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var refFields []string
	for _, f := range describe.Fields {
		if len(f.References) > 0 {
			refFields = append(refFields, f.Name)
		}
	}
	if len(refFields) == 0 {
		return nil, nil
	}

	soql := fmt.Sprintf("SELECT Id, %s FROM %s WHERE Id IN %s",
		strings.Join(refFields, ", "), object, quoteIn(rc.RecordIDs))
	result, err := rc.Client.Query(ctx, rc.SourceOrg, soql)
	if err != nil {
		return nil, err
	}

	// referenced record ID -> parent record ID and field it came from
	type refSource struct {
		parentID string
		field    string
	}
	refs := make(map[string]refSource)
	var refIDs []string
	for _, rec := range result.Records {
		parentID := stringField(rec, "Id")
		for _, field := range refFields {
			refID := stringField(rec, field)
			if refID == "" {
				continue
			}
			if _, seen := refs[refID]; !seen {
				refIDs = append(refIDs, refID)
				refs[refID] = refSource{parentID: parentID, field: field}
			}
		}
	}
	if len(refIDs) == 0 {
		return nil, nil
	}

	infos, err := rc.Client.GetRecords(ctx, rc.TargetOrg, refIDs)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, refID := range refIDs {
		if info, ok := infos[refID]; ok && info.Exists {
			continue
		}
		src := refs[refID]
		findings = append(findings, Finding{
			Severity: domain.SeverityError,
			CheckFinding: validation.CheckFinding{
				Check:           "Missing Referenced Record",
				Message:         fmt.Sprintf("Record %s references %s via %s, which does not exist in the target org.", src.parentID, refID, src.field),
				RecordID:        refID,
				RecordLink:      rc.SourceOrg.RecordURL(refID),
				Field:           src.field,
				SuggestedAction: "Migrate the referenced record first or clear the reference.",
				ParentRecordID:  src.parentID,
			},
		})
	}

	return findings, nil
}

// checkRecordSummary emits one informational finding describing the scope
// of the run.
func checkRecordSummary(ctx context.Context, rc RuleContext) ([]Finding, error) {
	return []Finding{{
		Severity: domain.SeverityInfo,
		CheckFinding: validation.CheckFinding{
			Check:   "Migration Scope",
			Message: fmt.Sprintf("%d %s records selected for migration from %s to %s.", len(rc.RecordIDs), rc.Object(), rc.SourceOrg.Name, rc.TargetOrg.Name),
		},
	}}, nil
}

// =============================================================================
// Query Helpers
// =============================================================================

// quoteIn builds a SOQL IN clause from values, escaping single quotes.
func quoteIn(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// stringField extracts a string field from a query row. Non-string and
// missing values yield an empty string.
func stringField(rec map[string]any, name string) string {
	v, ok := rec[name]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	return s
}
