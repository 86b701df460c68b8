package domain

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrTemplateNoSteps      = errors.New("template must have at least one step")
	ErrStepNameRequired     = errors.New("step name is required")
	ErrStepObjectRequired   = errors.New("step extract object is required")
	ErrUnknownStepKind      = errors.New("unknown step kind")
)

// DefaultObjectType is the object API name assumed when a template's first
// step does not declare one.
const DefaultObjectType = "Product2"

// =============================================================================
// ETL Steps
// =============================================================================

// StepKind identifies what a template step does.
type StepKind string

const (
	StepExtract   StepKind = "extract"
	StepTransform StepKind = "transform"
	StepLoad      StepKind = "load"
)

// IsValid checks if the step kind is a known value.
func (k StepKind) IsValid() bool {
	switch k {
	case StepExtract, StepTransform, StepLoad:
		return true
	default:
		return false
	}
}

// ExtractConfig describes what an extract step pulls from the source org.
type ExtractConfig struct {
	// Object is the API name of the object to extract (e.g., "Product2").
	Object string `json:"object" yaml:"object"`

	// Fields lists the fields to extract. Empty means all queryable fields.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Filter is an optional query predicate appended to the extraction query.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// ETLStep is one stage of a template.
type ETLStep struct {
	Name    string        `json:"name" yaml:"name"`
	Kind    StepKind      `json:"kind" yaml:"kind"`
	Extract ExtractConfig `json:"extract,omitempty" yaml:"extract,omitempty"`
}

// =============================================================================
// Check Configuration
// =============================================================================

// CheckConfig declares one validation rule a template wants executed before
// migration. Rule names are resolved by the validation engine.
type CheckConfig struct {
	// Rule is the registered rule name (e.g., "target-object-exists").
	Rule string `json:"rule" yaml:"rule"`

	// Object overrides the object the rule inspects. Defaults to the
	// template's primary object.
	Object string `json:"object,omitempty" yaml:"object,omitempty"`

	// Fields lists the fields the rule inspects, for field-scoped rules.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// =============================================================================
// Template
// =============================================================================

// Template is a named, ordered definition of extract/transform/load steps
// used to drive a migration and its validation checks. Templates are
// immutable once resolved for a validation run.
type Template struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Version     string        `json:"version"`
	Steps       []ETLStep     `json:"steps"`
	Checks      []CheckConfig `json:"checks,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PrimaryObject returns the object API name of the first extract step, or
// DefaultObjectType if the template declares none. Selected records must be
// of this type.
func (t *Template) PrimaryObject() string {
	for _, step := range t.Steps {
		if step.Kind != StepExtract {
			continue
		}
		if obj := strings.TrimSpace(step.Extract.Object); obj != "" {
			return obj
		}
		break
	}
	return DefaultObjectType
}

// ValidateTemplate validates a template definition and returns all
// validation errors found.
func ValidateTemplate(t Template) []error {
	var errs []error

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, ErrTemplateNameRequired)
	}
	if len(t.Steps) == 0 {
		errs = append(errs, ErrTemplateNoSteps)
	}
	for _, step := range t.Steps {
		if strings.TrimSpace(step.Name) == "" {
			errs = append(errs, ErrStepNameRequired)
		}
		if !step.Kind.IsValid() {
			errs = append(errs, ErrUnknownStepKind)
			continue
		}
		if step.Kind == StepExtract && strings.TrimSpace(step.Extract.Object) == "" {
			errs = append(errs, ErrStepObjectRequired)
		}
	}

	return errs
}
