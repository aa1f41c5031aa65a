// Package runner wires the orchestration components into one session:
// a workspace-rooted store, the event bus, the checkpoint manager, the
// execution engine, and the scheduler.
//
// The default action generator executes each task's plan from the
// loaded plan file; checkpoints are created around each task when
// enabled, with optional rollback on failure.
package runner
