// Package task defines the shared data model for the orchestration core:
// tasks, execution plans, execution results, and the accumulated evidence
// the reflection loop carries between attempts.
package task

import "time"

// Status represents the current lifecycle state of a task.
type Status string

const (
	// StatusPending indicates the task is waiting to be dispatched.
	StatusPending Status = "pending"

	// StatusInProgress indicates the task is actively being executed.
	StatusInProgress Status = "in_progress"

	// StatusComplete indicates the task finished successfully.
	StatusComplete Status = "complete"

	// StatusFailed indicates the task failed and exhausted all retries.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CriterionKind identifies the type of a success criterion check.
type CriterionKind string

const (
	// CriterionFileExists passes when the named file exists in the workspace.
	CriterionFileExists CriterionKind = "file_exists"

	// CriterionFileContains passes when the named file contains a substring.
	CriterionFileContains CriterionKind = "file_contains"

	// CriterionCommandRuns passes when the command exits with status zero.
	CriterionCommandRuns CriterionKind = "command_runs"
)

// Criterion is one checkable condition contributing to task completion.
// Which fields are meaningful depends on Kind.
type Criterion struct {
	Kind      CriterionKind `json:"kind" yaml:"kind"`
	Path      string        `json:"path,omitempty" yaml:"path,omitempty"`
	Substring string        `json:"substring,omitempty" yaml:"substring,omitempty"`
	Program   string        `json:"program,omitempty" yaml:"program,omitempty"`
	Args      []string      `json:"args,omitempty" yaml:"args,omitempty"`
}

// Task is one unit of work tracked through the scheduler and engine.
// The caller owns the Task; the scheduler and engine update Status,
// RetryCount and LastError through the instance they were handed,
// never through a second copy.
type Task struct {
	// ID uniquely identifies the task within a session.
	ID string `json:"id"`

	// Title is a short human-readable description.
	Title string `json:"title"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Priority orders dispatch; higher values run first. Tasks with
	// equal priority run in enqueue order.
	Priority int `json:"priority,omitempty"`

	// RetryCount is the number of retry attempts so far.
	RetryCount int `json:"retry_count"`

	// SuccessCriteria are the checkable conditions that define completion.
	SuccessCriteria []Criterion `json:"success_criteria,omitempty"`

	// LastError holds the most recent failure message, if any.
	LastError string `json:"last_error,omitempty"`
}

// ActionKind identifies the variant of a plan action.
type ActionKind string

const (
	// ActionFileWrite writes content to a target file.
	ActionFileWrite ActionKind = "file_write"

	// ActionFileDelete removes a target file.
	ActionFileDelete ActionKind = "file_delete"

	// ActionCommand runs an external command.
	ActionCommand ActionKind = "command"
)

// Action is one step of an execution plan. Which fields are meaningful
// depends on Kind: file actions use Target (and Content for writes),
// command actions use Program and Args.
type Action struct {
	Kind    ActionKind `json:"kind" yaml:"kind"`
	Target  string     `json:"target,omitempty" yaml:"target,omitempty"`
	Content string     `json:"content,omitempty" yaml:"content,omitempty"`
	Program string     `json:"program,omitempty" yaml:"program,omitempty"`
	Args    []string   `json:"args,omitempty" yaml:"args,omitempty"`

	// Destructive marks actions that require approval before execution
	// when the engine is configured to gate them.
	Destructive bool `json:"destructive,omitempty" yaml:"destructive,omitempty"`
}

// Describe returns a short human-readable summary of the action, suitable
// for approval prompts and logs.
func (a Action) Describe() string {
	switch a.Kind {
	case ActionFileWrite:
		return "write file " + a.Target
	case ActionFileDelete:
		return "delete file " + a.Target
	case ActionCommand:
		s := "run command " + a.Program
		for _, arg := range a.Args {
			s += " " + arg
		}
		return s
	default:
		return "unknown action " + string(a.Kind)
	}
}

// Plan is an ordered sequence of actions fulfilling one task.
// Plans are immutable once built; actions execute strictly in order
// and the first failure aborts the remaining sequence.
type Plan struct {
	TaskID  string   `json:"task_id" yaml:"task_id"`
	Actions []Action `json:"actions" yaml:"actions"`
}

// ExecutionResult is the outcome of executing a plan or one generation
// attempt. Results are produced fresh per attempt and never mutated
// after return.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	FilesCreated  []string      `json:"files_created,omitempty"`
	FilesModified []string      `json:"files_modified,omitempty"`
	CommandsRun   []string      `json:"commands_run,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Failure builds a failed ExecutionResult with the given error message.
func Failure(errMsg string) ExecutionResult {
	return ExecutionResult{Success: false, Error: errMsg}
}

// Evaluation is the completion evaluator's verdict on a task.
type Evaluation struct {
	// Confidence in [0,1] that the task's success criteria are met.
	Confidence float64 `json:"confidence"`

	// Reasoning is the evaluator's explanation for the score.
	Reasoning string `json:"reasoning"`

	// Detected reports whether the evaluator found concrete evidence
	// (criteria, artifacts) to base its score on.
	Detected bool `json:"detected"`
}

// AttemptRecord is one reflection iteration's evidence. Records are
// appended to an ordered, append-only history per (session, task).
type AttemptRecord struct {
	Iteration  int             `json:"iteration"`
	Timestamp  time.Time       `json:"timestamp"`
	Result     ExecutionResult `json:"result"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// FailurePattern tracks how often one error message has recurred across
// attempts.
type FailurePattern struct {
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// FailureContext is the read-only view of prior evidence passed to the
// action generator before each reflection iteration after the first.
type FailureContext struct {
	// Iteration is the 1-indexed iteration about to run.
	Iteration int `json:"iteration"`

	// Attempts holds all prior attempt records, oldest first.
	Attempts []AttemptRecord `json:"attempts"`

	// Patterns are the detected failure patterns, ordered by first
	// occurrence.
	Patterns []FailurePattern `json:"patterns,omitempty"`

	// TouchedFiles is the union of files created or modified across all
	// prior attempts, in first-touched order.
	TouchedFiles []string `json:"touched_files,omitempty"`

	// UserGuidance is free-text advice collected from the user after a
	// persistent failure, if any.
	UserGuidance string `json:"user_guidance,omitempty"`
}
