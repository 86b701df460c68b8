// Package validation contains the pure decision logic for pre-migration
// validation: record-selection classification, report assembly with severity
// partitioning, the large-batch heuristic, and auth-failure detection.
// This is part of the Functional Core - all functions are pure with no I/O.
package validation
