// Package engine executes plans and drives the reflection loop.
//
// ExecutePlan runs an ordered action sequence (file writes, deletes,
// commands) with a shared file-modification circuit breaker, approval
// gating for destructive actions, and bounded command retry with
// exponential backoff. ExecuteWithReflection wraps an action generator
// and a completion evaluator in a bounded iterate-evaluate state
// machine, feeding each retry the accumulated failure evidence of the
// attempts before it.
package engine
