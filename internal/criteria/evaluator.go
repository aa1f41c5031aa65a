// Package criteria evaluates a task's structured success criteria
// against the workspace.
package criteria

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/storage"
	"github.com/hollis-day/autopilot/internal/task"
)

// CommandRunner executes a criterion's check command.
type CommandRunner interface {
	Run(ctx context.Context, program string, args []string) (output string, exitCode int, err error)
}

// Evaluator scores task completion by checking each success criterion:
// file existence, file content, or a command exiting zero. Confidence
// is the fraction of criteria that pass.
type Evaluator struct {
	store  storage.Store
	runner CommandRunner
	logger *logging.Logger
}

// NewEvaluator creates a criteria evaluator.
func NewEvaluator(store storage.Store, runner CommandRunner, logger *logging.Logger) *Evaluator {
	return &Evaluator{store: store, runner: runner, logger: logger}
}

// Evaluate checks all of the task's success criteria. A task with no
// criteria scores full confidence with Detected false, since there is
// no concrete evidence to check.
func (e *Evaluator) Evaluate(ctx context.Context, t *task.Task) (task.Evaluation, error) {
	if len(t.SuccessCriteria) == 0 {
		return task.Evaluation{
			Confidence: 1.0,
			Reasoning:  "no success criteria defined",
			Detected:   false,
		}, nil
	}

	passed := 0
	var failures []string
	for _, c := range t.SuccessCriteria {
		ok, detail := e.check(ctx, c)
		if ok {
			passed++
		} else {
			failures = append(failures, detail)
		}
	}

	confidence := float64(passed) / float64(len(t.SuccessCriteria))
	reasoning := fmt.Sprintf("%d of %d criteria met", passed, len(t.SuccessCriteria))
	if len(failures) > 0 {
		reasoning += ": " + strings.Join(failures, "; ")
	}
	e.logger.Debug("criteria evaluated",
		"task_id", t.ID, "passed", passed, "total", len(t.SuccessCriteria))

	return task.Evaluation{
		Confidence: confidence,
		Reasoning:  reasoning,
		Detected:   true,
	}, nil
}

// check runs one criterion and, on failure, describes what was missing.
func (e *Evaluator) check(ctx context.Context, c task.Criterion) (bool, string) {
	switch c.Kind {
	case task.CriterionFileExists:
		if e.store.Exists(c.Path) {
			return true, ""
		}
		return false, fmt.Sprintf("file %s does not exist", c.Path)

	case task.CriterionFileContains:
		content, err := e.store.ReadFile(c.Path)
		if err != nil {
			return false, fmt.Sprintf("file %s is unreadable", c.Path)
		}
		if strings.Contains(string(content), c.Substring) {
			return true, ""
		}
		return false, fmt.Sprintf("file %s does not contain %q", c.Path, c.Substring)

	case task.CriterionCommandRuns:
		_, exitCode, err := e.runner.Run(ctx, c.Program, c.Args)
		if err != nil {
			return false, fmt.Sprintf("command %s exited %d", c.Program, exitCode)
		}
		return true, ""

	default:
		return false, fmt.Sprintf("unknown criterion kind %q", c.Kind)
	}
}
