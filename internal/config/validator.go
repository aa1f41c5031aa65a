package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "engine.max_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// IsValidLogLevel checks if the given level is a valid log level
func IsValidLogLevel(level string) bool {
	return slices.Contains(ValidLogLevels(), level)
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateCheckpoint()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.MaxConcurrentTasks < 1 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_concurrent_tasks",
			Value:   c.Scheduler.MaxConcurrentTasks,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.shutdown_timeout_seconds",
			Value:   c.Scheduler.ShutdownTimeoutSeconds,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	if c.Engine.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.max_iterations",
			Value:   c.Engine.MaxIterations,
			Message: "must be at least 1",
		})
	}
	if c.Engine.ConfidenceThreshold <= 0 || c.Engine.ConfidenceThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.confidence_threshold",
			Value:   c.Engine.ConfidenceThreshold,
			Message: "must be in (0, 1]",
		})
	}
	if c.Engine.PersistentFailureThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.persistent_failure_threshold",
			Value:   c.Engine.PersistentFailureThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Engine.MaxFileModifications < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.max_file_modifications",
			Value:   c.Engine.MaxFileModifications,
			Message: "must not be negative (0 disables the limit)",
		})
	}
	if c.Engine.CommandTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.command_timeout_seconds",
			Value:   c.Engine.CommandTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Engine.MaxCommandRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.max_command_retries",
			Value:   c.Engine.MaxCommandRetries,
			Message: "must not be negative",
		})
	}
	if c.Engine.RetryBackoffMultiplier <= 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.retry_backoff_multiplier",
			Value:   c.Engine.RetryBackoffMultiplier,
			Message: "must be greater than 1",
		})
	}

	return errors
}

func (c *Config) validateCheckpoint() []ValidationError {
	var errors []ValidationError

	if c.Checkpoint.CompactKeep < 0 {
		errors = append(errors, ValidationError{
			Field:   "checkpoint.compact_keep",
			Value:   c.Checkpoint.CompactKeep,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must not be negative",
		})
	}

	return errors
}
