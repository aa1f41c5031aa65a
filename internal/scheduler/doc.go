// Package scheduler dispatches tasks to an executor with bounded
// concurrency.
//
// Tasks are ordered by priority, FIFO within equal priority, and run
// on up to maxConcurrent worker slots. The scheduler carries no retry
// policy of its own; a task's outcome is reported once through a
// task.completed event and the retry decision belongs to the engine.
// Queued state can be persisted to disk, guarded by a flock(2) file
// lock so concurrent autopilot processes sharing a session directory
// do not corrupt it.
package scheduler
