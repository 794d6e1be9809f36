package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during engine execution.
//
// Runtime errors include:
//   - Ceiling exceeded: the run fired more activations than the ceiling
//   - Action failed: a rule's action returned an error or a bad fact
//   - Engine busy: Run called on an engine that is not Idle
//
// Note the asymmetry with ir.DefinitionError: ill-formed rule sets fail at
// construction time and never reach the engine. A RuntimeError always
// indicates a rule-set defect or misuse, not a data problem.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunToken identifies the affected run.
	RunToken string

	// RuleID identifies the rule (for action errors).
	RuleID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCeilingExceeded indicates the run exceeded the firing ceiling.
	ErrCodeCeilingExceeded RuntimeErrorCode = "CEILING_EXCEEDED"

	// ErrCodeActionFailed indicates a rule action failed to produce facts.
	ErrCodeActionFailed RuntimeErrorCode = "ACTION_FAILED"

	// ErrCodeEngineBusy indicates Run was called while not Idle.
	ErrCodeEngineBusy RuntimeErrorCode = "ENGINE_BUSY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunToken != "" && e.RuleID != "" {
		return fmt.Sprintf("%s: %s (run=%s, rule=%s)", e.Code, e.Message, e.RunToken, e.RuleID)
	}
	if e.RunToken != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunToken)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCeilingError returns true if the error reports an exceeded firing
// ceiling. Matches both RuntimeError with ErrCodeCeilingExceeded and
// CeilingExceededError. Uses errors.As to handle wrapped errors.
func IsCeilingError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCeilingExceeded
	}
	var ce *CeilingExceededError
	return errors.As(err, &ce)
}

// CeilingExceededError is returned when a run exceeds the firing ceiling.
//
// This terminates the run as Failed. It indicates a rule-set defect
// (unbounded chaining), never a data problem, and is non-retryable:
// the same rules over the same facts will exceed the ceiling again.
type CeilingExceededError struct {
	RunToken string // The run that exceeded the ceiling
	Firings  int    // Number of activations fired
	Ceiling  int    // Maximum allowed firings
}

// Error implements the error interface.
func (e *CeilingExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded firing ceiling: %d firings > %d limit",
		e.RunToken, e.Firings, e.Ceiling)
}
