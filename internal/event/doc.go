// Package event provides a pub-sub event bus for decoupled inter-component
// communication in autopilot.
//
// The scheduler, execution engine and checkpoint manager publish progress
// events without knowing who will receive them, and surfaces (CLI status,
// logging sinks, tests) subscribe without knowing who produces them.
//
// # Main Types
//
//   - [Event]: Interface all events implement, providing EventType(), SessionID() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher with bounded history and thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Task lifecycle:
//   - [TaskCompletedEvent]: Emitted when a task reaches a terminal state
//
// Checkpoints:
//   - [CheckpointCreatedEvent]: Emitted when a checkpoint is written
//   - [RollbackPerformedEvent]: Emitted when a checkpoint restore completes
//
// Reflection loop:
//   - [ReflectionStartedEvent]: Emitted once before the first iteration
//   - [ReflectionIterationEvent]: Emitted after each generate+evaluate cycle
//   - [ReflectionCompletedEvent]: Emitted when the loop terminates
//
// Approval:
//   - [ApprovalRequiredEvent]: Emitted when a destructive action awaits approval
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously and protected against panics - a panicking handler will
// not prevent other handlers from being called. The bus keeps a bounded
// in-memory history (default 1000 entries, oldest evicted first) that can
// be filtered per session via [Bus.History].
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	unsub := bus.Subscribe(event.TypeTaskCompleted, func(e event.Event) {
//	    done := e.(event.TaskCompletedEvent)
//	    log.Printf("task %s finished (success=%v)", done.TaskID, done.Success)
//	})
//	defer unsub()
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish typed events, or use Emit for ad-hoc payloads
//	bus.Publish(event.NewTaskCompletedEvent("sess-1", "t1", true, ""))
//	bus.Emit("task.completed", "sess-1", map[string]any{"task_id": "t2"})
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - task.completed
//   - checkpoint.created, rollback.performed
//   - reflection.started, reflection.iteration, reflection.completed
//   - approval.required
package event
