// Package engine executes per-template validation checks against live data
// in the source and target orgs. The engine is read-only with respect to
// both orgs and deterministic for a fixed org state: checks run
// concurrently, but findings are merged in declared check order.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/orgshift/orgshift/internal/core/domain"
	"github.com/orgshift/orgshift/internal/core/validation"
	"github.com/orgshift/orgshift/internal/shell/orgapi"
)

// =============================================================================
// Engine Interface
// =============================================================================

// Request carries everything one validation engine run needs.
type Request struct {
	Template  *domain.Template
	SourceOrg *domain.Org
	TargetOrg *domain.Org
	RecordIDs []string
}

// Engine runs the validation checks a template declares and returns the
// classified finding sequences.
type Engine interface {
	Validate(ctx context.Context, req Request) (validation.EngineOutput, error)
}

// =============================================================================
// Findings and Rules
// =============================================================================

// Finding is one classified finding produced by a rule.
type Finding struct {
	validation.CheckFinding
	Severity domain.Severity
}

// RuleContext is the input to a single rule execution.
type RuleContext struct {
	Template  *domain.Template
	SourceOrg *domain.Org
	TargetOrg *domain.Org
	RecordIDs []string
	Check     domain.CheckConfig
	Client    orgapi.Client
}

// Object returns the object the check inspects: the check's own override or
// the template's primary object.
func (rc RuleContext) Object() string {
	if rc.Check.Object != "" {
		return rc.Check.Object
	}
	return rc.Template.PrimaryObject()
}

// RuleFunc executes one validation rule. Rules must not mutate org data.
type RuleFunc func(ctx context.Context, rc RuleContext) ([]Finding, error)

// =============================================================================
// Runner
// =============================================================================

// Runner is the default Engine implementation with a pluggable rule set.
type Runner struct {
	client        orgapi.Client
	rules         map[string]RuleFunc
	defaultChecks []domain.CheckConfig
	logger        *slog.Logger
}

// NewRunner creates a Runner with the built-in rule set registered.
func NewRunner(client orgapi.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		client: client,
		rules:  make(map[string]RuleFunc),
		logger: logger.With("component", "validation_engine"),
		defaultChecks: []domain.CheckConfig{
			{Rule: RuleTargetObjectExists},
			{Rule: RuleRequiredFieldsPresent},
		},
	}

	r.Register(RuleTargetObjectExists, checkTargetObjectExists)
	r.Register(RuleRequiredFieldsPresent, checkRequiredFieldsPresent)
	r.Register(RuleFieldValues, checkFieldValues)
	r.Register(RuleDuplicateRecords, checkDuplicateRecords)
	r.Register(RuleMissingReferences, checkMissingReferences)
	r.Register(RuleRecordSummary, checkRecordSummary)

	return r
}

// Register adds or replaces a rule.
func (r *Runner) Register(name string, fn RuleFunc) {
	r.rules[name] = fn
}

// Validate runs every check the template declares (or the default check set
// when it declares none), fanning the checks out concurrently and merging
// findings in declared order.
func (r *Runner) Validate(ctx context.Context, req Request) (validation.EngineOutput, error) {
	checks := req.Template.Checks
	if len(checks) == 0 {
		checks = r.defaultChecks
	}

	r.logger.Debug("running validation checks",
		"template_id", req.Template.ID,
		"checks", len(checks),
		"records", len(req.RecordIDs),
	)

	results := make([][]Finding, len(checks))
	g, gctx := errgroup.WithContext(ctx)

	for i, check := range checks {
		rule, ok := r.rules[check.Rule]
		if !ok {
			return validation.EngineOutput{}, fmt.Errorf("unknown validation rule %q", check.Rule)
		}

		g.Go(func() error {
			rc := RuleContext{
				Template:  req.Template,
				SourceOrg: req.SourceOrg,
				TargetOrg: req.TargetOrg,
				RecordIDs: req.RecordIDs,
				Check:     check,
				Client:    r.client,
			}
			findings, err := rule(gctx, rc)
			if err != nil {
				return fmt.Errorf("rule %s: %w", check.Rule, err)
			}
			results[i] = findings
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return validation.EngineOutput{}, err
	}

	return mergeFindings(results), nil
}

// mergeFindings classifies findings by severity, preserving check order and
// within-check order.
func mergeFindings(results [][]Finding) validation.EngineOutput {
	var out validation.EngineOutput
	for _, findings := range results {
		for _, f := range findings {
			switch f.Severity {
			case domain.SeverityError:
				out.Errors = append(out.Errors, f.CheckFinding)
			case domain.SeverityWarning:
				out.Warnings = append(out.Warnings, f.CheckFinding)
			default:
				out.Info = append(out.Info, f.CheckFinding)
			}
		}
	}
	return out
}
