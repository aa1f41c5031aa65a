// Package event defines the publish/subscribe fabric that ties the
// scheduler, execution engine and checkpoint manager together without
// direct dependencies between them.
package event

import "time"

// Event type identifiers. The set is closed: every event published by the
// core uses one of these types.
const (
	TypeTaskCompleted       = "task.completed"
	TypeCheckpointCreated   = "checkpoint.created"
	TypeRollbackPerformed   = "rollback.performed"
	TypeReflectionStarted   = "reflection.started"
	TypeReflectionIteration = "reflection.iteration"
	TypeReflectionCompleted = "reflection.completed"
	TypeApprovalRequired    = "approval.required"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.completed").
	EventType() string

	// SessionID returns the session this event belongs to.
	SessionID() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	sessionID string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) SessionID() string    { return e.sessionID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent stamped with the current time.
func newBaseEvent(eventType, sessionID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		sessionID: sessionID,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskCompletedEvent is emitted when a task reaches a terminal state.
type TaskCompletedEvent struct {
	baseEvent
	TaskID  string // Task that finished
	Success bool   // Whether the task completed successfully
	Error   string // Error message (if failed)
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(sessionID, taskID string, success bool, errMsg string) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent(TypeTaskCompleted, sessionID),
		TaskID:    taskID,
		Success:   success,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Events
// -----------------------------------------------------------------------------

// CheckpointCreatedEvent is emitted when a checkpoint is written.
type CheckpointCreatedEvent struct {
	baseEvent
	CheckpointID string
	Phase        int
	FileCount    int
}

// NewCheckpointCreatedEvent creates a CheckpointCreatedEvent.
func NewCheckpointCreatedEvent(sessionID, checkpointID string, phase, fileCount int) CheckpointCreatedEvent {
	return CheckpointCreatedEvent{
		baseEvent:    newBaseEvent(TypeCheckpointCreated, sessionID),
		CheckpointID: checkpointID,
		Phase:        phase,
		FileCount:    fileCount,
	}
}

// RollbackPerformedEvent is emitted when a checkpoint restore completes.
type RollbackPerformedEvent struct {
	baseEvent
	CheckpointID  string
	FilesRestored int
	UsedGitRevert bool // True when the commit-revert fast path was taken
}

// NewRollbackPerformedEvent creates a RollbackPerformedEvent.
func NewRollbackPerformedEvent(sessionID, checkpointID string, filesRestored int, usedGitRevert bool) RollbackPerformedEvent {
	return RollbackPerformedEvent{
		baseEvent:     newBaseEvent(TypeRollbackPerformed, sessionID),
		CheckpointID:  checkpointID,
		FilesRestored: filesRestored,
		UsedGitRevert: usedGitRevert,
	}
}

// -----------------------------------------------------------------------------
// Reflection Events
// -----------------------------------------------------------------------------

// ReflectionStartedEvent is emitted once before the first reflection
// iteration of a task.
type ReflectionStartedEvent struct {
	baseEvent
	TaskID        string
	MaxIterations int
}

// NewReflectionStartedEvent creates a ReflectionStartedEvent.
func NewReflectionStartedEvent(sessionID, taskID string, maxIterations int) ReflectionStartedEvent {
	return ReflectionStartedEvent{
		baseEvent:     newBaseEvent(TypeReflectionStarted, sessionID),
		TaskID:        taskID,
		MaxIterations: maxIterations,
	}
}

// ReflectionIterationEvent is emitted after each generate+evaluate cycle.
type ReflectionIterationEvent struct {
	baseEvent
	TaskID     string
	Iteration  int
	Success    bool
	Confidence float64
	Reasoning  string
}

// NewReflectionIterationEvent creates a ReflectionIterationEvent.
func NewReflectionIterationEvent(sessionID, taskID string, iteration int, success bool, confidence float64, reasoning string) ReflectionIterationEvent {
	return ReflectionIterationEvent{
		baseEvent:  newBaseEvent(TypeReflectionIteration, sessionID),
		TaskID:     taskID,
		Iteration:  iteration,
		Success:    success,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// ReflectionCompletedEvent is emitted when the reflection loop terminates,
// whether by success, exhaustion or escalation.
type ReflectionCompletedEvent struct {
	baseEvent
	TaskID          string
	Success         bool
	IterationsUsed  int
	FinalConfidence float64
	Reason          string // Populated on failure ("exhausted", "escalated")
}

// NewReflectionCompletedEvent creates a ReflectionCompletedEvent.
func NewReflectionCompletedEvent(sessionID, taskID string, success bool, iterationsUsed int, finalConfidence float64, reason string) ReflectionCompletedEvent {
	return ReflectionCompletedEvent{
		baseEvent:       newBaseEvent(TypeReflectionCompleted, sessionID),
		TaskID:          taskID,
		Success:         success,
		IterationsUsed:  iterationsUsed,
		FinalConfidence: finalConfidence,
		Reason:          reason,
	}
}

// -----------------------------------------------------------------------------
// Approval Events
// -----------------------------------------------------------------------------

// ApprovalRequiredEvent is emitted when a destructive action is waiting
// on user approval.
type ApprovalRequiredEvent struct {
	baseEvent
	TaskID      string
	Description string
}

// NewApprovalRequiredEvent creates an ApprovalRequiredEvent.
func NewApprovalRequiredEvent(sessionID, taskID, description string) ApprovalRequiredEvent {
	return ApprovalRequiredEvent{
		baseEvent:   newBaseEvent(TypeApprovalRequired, sessionID),
		TaskID:      taskID,
		Description: description,
	}
}

// -----------------------------------------------------------------------------
// Generic Events
// -----------------------------------------------------------------------------

// GenericEvent carries an arbitrary structured payload. It backs the
// Bus.Emit sugar for callers that do not need a dedicated event type.
type GenericEvent struct {
	baseEvent
	Data map[string]any
}

// NewGenericEvent creates a GenericEvent with the given type and payload.
func NewGenericEvent(eventType, sessionID string, data map[string]any) GenericEvent {
	return GenericEvent{
		baseEvent: newBaseEvent(eventType, sessionID),
		Data:      data,
	}
}
