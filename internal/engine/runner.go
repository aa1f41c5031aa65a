package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/hollis-day/autopilot/internal/errs"
)

// CommandRunner executes one external command attempt. Implementations
// must honor ctx cancellation.
type CommandRunner interface {
	// Run executes the program and returns its combined output and exit
	// code. err is non-nil for any non-zero exit or startup failure.
	Run(ctx context.Context, program string, args []string) (output string, exitCode int, err error)
}

// ExecCommandRunner runs commands through os/exec in a fixed working
// directory.
type ExecCommandRunner struct {
	Dir string
}

func (r *ExecCommandRunner) Run(ctx context.Context, program string, args []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	output := string(out)
	if err == nil {
		return output, 0, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if errors.Is(err, exec.ErrNotFound) {
		exitCode = 127
	}
	if ctx.Err() != nil {
		return output, exitCode, fmt.Errorf("command timed out: %w", ctx.Err())
	}
	return output, exitCode, fmt.Errorf("command failed: %w", err)
}

// runCommand executes one command with bounded retry and exponential
// backoff. Strategic failures exit after a single attempt; transient
// failures are retried up to MaxCommandRetries additional times. On
// final failure the error states the attempt count.
func (e *Engine) runCommand(ctx context.Context, program string, args []string) (string, error) {
	maxAttempts := e.opts.MaxCommandRetries + 1
	var lastErr error
	var lastOutput string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.CommandTimeout)
		output, exitCode, err := e.runner.Run(attemptCtx, program, args)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = err
		lastOutput = output

		class := errs.ClassifyCommandFailure(exitCode, output+" "+err.Error())
		if class == errs.ClassStrategic {
			e.logger.Debug("command failed with strategic error, not retrying",
				"program", program, "exit_code", exitCode, "error", err)
			return lastOutput, fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
		}

		if attempt < maxAttempts {
			delay := e.retryDelay(attempt)
			e.logger.Debug("command failed with transient error, retrying",
				"program", program,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastOutput, fmt.Errorf("failed after %d attempts: %w", attempt, ctx.Err())
			}
		}
	}
	return lastOutput, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// retryDelay computes the backoff before the next attempt:
// min(initial * multiplier^(attempt-1), max).
func (e *Engine) retryDelay(attempt int) time.Duration {
	d := time.Duration(float64(e.opts.InitialRetryDelay) *
		math.Pow(e.opts.RetryBackoffMultiplier, float64(attempt-1)))
	if d > e.opts.MaxRetryDelay {
		d = e.opts.MaxRetryDelay
	}
	return d
}

func commandLine(program string, args []string) string {
	if len(args) == 0 {
		return program
	}
	return program + " " + strings.Join(args, " ")
}
