// Package errs provides centralized error definitions and classification
// helpers for the orchestration core. It defines sentinel errors for the
// scheduler, engine and checkpoint manager, domain error types with
// context wrapping, and the transient/strategic failure classification
// used by command retry.
//
// Creating errors:
//
//	err := errs.NewTaskError("generation failed", cause).WithTaskID("t1")
//
// Checking errors:
//
//	if errs.Is(err, errs.ErrTaskNotFound) { ... }
//	if errs.ClassifyCommandFailure(code, msg) == errs.ClassTransient { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Scheduler-related sentinel errors
var (
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrNoExecutor indicates that processing started without an executor.
	ErrNoExecutor = New("no executor registered")
	// ErrSchedulerStopped indicates an operation on a stopped scheduler.
	ErrSchedulerStopped = New("scheduler is stopped")
)

// Engine-related sentinel errors
var (
	// ErrModificationLimit indicates the per-engine file modification
	// circuit breaker tripped. Error strings wrapping this sentinel
	// always contain the literal words "modification limit".
	ErrModificationLimit = New("modification limit reached")
	// ErrIterationsExhausted indicates the reflection loop ran out of
	// iterations. Error strings wrapping this sentinel always contain
	// the literal word "exhausted".
	ErrIterationsExhausted = New("reflection iterations exhausted")
	// ErrApprovalDenied indicates a destructive action was rejected.
	ErrApprovalDenied = New("approval denied")
	// ErrUnknownAction indicates a plan contained an unrecognized
	// action kind. This is a caller error and is never retried.
	ErrUnknownAction = New("unknown action kind")
	// ErrTaskAbandoned indicates the user chose to abandon a task after
	// a persistent failure.
	ErrTaskAbandoned = New("task abandoned")
)

// Checkpoint-related sentinel errors
var (
	// ErrCheckpointNotFound indicates that a checkpoint could not be found.
	ErrCheckpointNotFound = New("checkpoint not found")
	// ErrCheckpointCorrupt indicates that a checkpoint record failed to parse.
	ErrCheckpointCorrupt = New("checkpoint record corrupt")
)

// Plan-related sentinel errors
var (
	// ErrPlanInvalid indicates that a plan document failed validation.
	ErrPlanInvalid = New("plan is invalid")
)

// -----------------------------------------------------------------------------
// Failure Classification
// -----------------------------------------------------------------------------

// Class categorizes an execution failure for retry purposes.
type Class int

const (
	// ClassTransient marks operational failures that may succeed on
	// retry: timeouts, connection errors, resource contention,
	// rate limiting.
	ClassTransient Class = iota

	// ClassStrategic marks failures that indicate a real defect or
	// misconfiguration. Retrying without a different approach is futile;
	// these are handed to the reflection loop instead.
	ClassStrategic
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassStrategic:
		return "strategic"
	default:
		return "unknown"
	}
}

// strategicExitCodes are exit codes that definitively indicate
// misconfiguration or a real defect rather than an operational hiccup.
var strategicExitCodes = map[int]bool{
	1:   true, // generic failure
	2:   true, // shell builtin misuse
	126: true, // found but not executable
	127: true, // command not found
}

// transientMarkers are substrings in error output that indicate an
// operational failure worth retrying regardless of exit code.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"resource busy",
	"too many requests",
	"rate limit",
}

// ClassifyCommandFailure classifies a failed command by its exit code and
// error output. Output markers take precedence over exit codes: a tool
// that exits 1 on a network timeout is still transient.
func ClassifyCommandFailure(exitCode int, output string) Class {
	lower := strings.ToLower(output)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return ClassTransient
		}
	}
	if strategicExitCodes[exitCode] {
		return ClassStrategic
	}
	return ClassTransient
}

// -----------------------------------------------------------------------------
// Domain Error Types
// -----------------------------------------------------------------------------

// TaskError represents an error during task execution or reflection.
type TaskError struct {
	message string
	cause   error
	TaskID  string
	Phase   string // "plan", "generate", "evaluate", "reflect"
}

// NewTaskError creates a TaskError wrapping an optional cause.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{message: message, cause: cause}
}

// WithTaskID attaches the task ID for context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// WithPhase attaches the execution phase for context.
func (e *TaskError) WithPhase(phase string) *TaskError {
	e.Phase = phase
	return e
}

// Error returns the error message with any attached context.
func (e *TaskError) Error() string {
	var b strings.Builder
	b.WriteString(e.message)
	if e.TaskID != "" {
		fmt.Fprintf(&b, " (task: %s)", e.TaskID)
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " (phase: %s)", e.Phase)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.cause
}

// CheckpointError represents an error during checkpoint operations.
type CheckpointError struct {
	message      string
	cause        error
	CheckpointID string
	SessionID    string
}

// NewCheckpointError creates a CheckpointError wrapping an optional cause.
func NewCheckpointError(message string, cause error) *CheckpointError {
	return &CheckpointError{message: message, cause: cause}
}

// WithCheckpointID attaches the checkpoint ID for context.
func (e *CheckpointError) WithCheckpointID(id string) *CheckpointError {
	e.CheckpointID = id
	return e
}

// WithSessionID attaches the session ID for context.
func (e *CheckpointError) WithSessionID(id string) *CheckpointError {
	e.SessionID = id
	return e
}

// Error returns the error message with any attached context.
func (e *CheckpointError) Error() string {
	var b strings.Builder
	b.WriteString(e.message)
	if e.CheckpointID != "" {
		fmt.Fprintf(&b, " (checkpoint: %s)", e.CheckpointID)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " (session: %s)", e.SessionID)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *CheckpointError) Unwrap() error {
	return e.cause
}
