package engine

import "time"

// Options configures one engine instance. Zero values are replaced by
// defaults in NewEngine; use DefaultOptions as a starting point.
type Options struct {
	// MaxIterations bounds the reflection loop.
	MaxIterations int

	// ConfidenceThreshold is the evaluator confidence at or above which
	// an iteration is accepted as success.
	ConfidenceThreshold float64

	// ReflectionEnabled selects the iterate-evaluate loop; when false
	// the engine performs exactly one generation and evaluation.
	ReflectionEnabled bool

	// PersistentFailureThreshold is the occurrence count at which one
	// recurring error message counts as a persistent failure.
	PersistentFailureThreshold int

	// PauseOnPersistentFailure asks the user for guidance when a
	// persistent failure is detected instead of iterating blindly.
	PauseOnPersistentFailure bool

	// MaxFileModifications caps file writes and deletes performed by
	// this engine instance across all plans. Zero means unlimited.
	MaxFileModifications int

	// RequireDestructiveApproval gates actions flagged destructive
	// behind the UI prompter.
	RequireDestructiveApproval bool

	// CommandTimeout is the wall-clock limit for one command attempt.
	CommandTimeout time.Duration

	// MaxCommandRetries is the number of retries after the first
	// attempt, so a transient command runs at most MaxCommandRetries+1
	// times.
	MaxCommandRetries int

	// InitialRetryDelay, RetryBackoffMultiplier and MaxRetryDelay shape
	// the exponential backoff between command attempts.
	InitialRetryDelay      time.Duration
	RetryBackoffMultiplier float64
	MaxRetryDelay          time.Duration
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		MaxIterations:              3,
		ConfidenceThreshold:        0.8,
		ReflectionEnabled:          true,
		PersistentFailureThreshold: 2,
		PauseOnPersistentFailure:   true,
		MaxFileModifications:       0,
		RequireDestructiveApproval: true,
		CommandTimeout:             2 * time.Minute,
		MaxCommandRetries:          3,
		InitialRetryDelay:          time.Second,
		RetryBackoffMultiplier:     2.0,
		MaxRetryDelay:              30 * time.Second,
	}
}

// normalize fills unset fields with their defaults.
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if o.PersistentFailureThreshold <= 0 {
		o.PersistentFailureThreshold = def.PersistentFailureThreshold
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = def.CommandTimeout
	}
	if o.MaxCommandRetries < 0 {
		o.MaxCommandRetries = def.MaxCommandRetries
	}
	if o.InitialRetryDelay <= 0 {
		o.InitialRetryDelay = def.InitialRetryDelay
	}
	if o.RetryBackoffMultiplier <= 1 {
		o.RetryBackoffMultiplier = def.RetryBackoffMultiplier
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = def.MaxRetryDelay
	}
	return o
}
