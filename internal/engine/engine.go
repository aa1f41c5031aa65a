package engine

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/storage"
	"github.com/hollis-day/autopilot/internal/task"
	"github.com/hollis-day/autopilot/internal/ui"
)

// Generator produces an execution attempt for a task. For reflection
// iterations after the first, failure carries the evidence of prior
// attempts; it is nil on the first iteration.
type Generator interface {
	Generate(ctx context.Context, t *task.Task, sessionID string, failure *task.FailureContext) (task.ExecutionResult, error)
}

// Evaluator judges whether a task's success criteria are met.
type Evaluator interface {
	Evaluate(ctx context.Context, t *task.Task) (task.Evaluation, error)
}

// Engine executes plans and runs the reflection loop. One engine
// instance may serve multiple concurrent tasks; the file-modification
// counter is shared across them.
type Engine struct {
	store     storage.Store
	bus       *event.Bus
	prompter  ui.Prompter
	runner    CommandRunner
	generator Generator
	evaluator Evaluator
	logger    *logging.Logger
	opts      Options

	mu            sync.Mutex
	modifications int
	attempts      map[string][]task.AttemptRecord
}

// NewEngine creates an execution engine. The generator and evaluator
// are required for ExecuteWithReflection; ExecutePlan works without
// them.
func NewEngine(store storage.Store, bus *event.Bus, prompter ui.Prompter, runner CommandRunner, generator Generator, evaluator Evaluator, logger *logging.Logger, opts Options) *Engine {
	return &Engine{
		store:     store,
		bus:       bus,
		prompter:  prompter,
		runner:    runner,
		generator: generator,
		evaluator: evaluator,
		logger:    logger,
		opts:      opts.normalize(),
		attempts:  make(map[string][]task.AttemptRecord),
	}
}

// SetGenerator replaces the action generator. Call before execution
// starts; collaborators are not swapped mid-task.
func (e *Engine) SetGenerator(g Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generator = g
}

// SetEvaluator replaces the completion evaluator.
func (e *Engine) SetEvaluator(ev Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluator = ev
}

// collaborators returns the current generator and evaluator.
func (e *Engine) collaborators() (Generator, Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generator, e.evaluator
}

// Reset clears the modification counter and attempt histories. Intended
// for test isolation and session reuse.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modifications = 0
	e.attempts = make(map[string][]task.AttemptRecord)
}

// ModificationCount returns the number of file mutations performed so
// far by this engine instance.
func (e *Engine) ModificationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modifications
}

// reserveModification atomically claims one slot of the modification
// budget. It fails once the configured limit is reached.
func (e *Engine) reserveModification() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opts.MaxFileModifications > 0 && e.modifications >= e.opts.MaxFileModifications {
		return fmt.Errorf("%w: modification limit reached (%d)",
			errs.ErrModificationLimit, e.opts.MaxFileModifications)
	}
	e.modifications++
	return nil
}

// ExecutePlan runs the plan's actions strictly in order. The first
// failure aborts the remaining sequence; the result carries whatever
// side effects accumulated before the failure.
func (e *Engine) ExecutePlan(ctx context.Context, plan task.Plan, sessionID string) task.ExecutionResult {
	start := time.Now()
	var result task.ExecutionResult

	fail := func(err error) task.ExecutionResult {
		result.Success = false
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.logger.Warn("plan execution failed",
			"task_id", plan.TaskID, "error", err)
		return result
	}

	for _, action := range plan.Actions {
		if action.Destructive && e.opts.RequireDestructiveApproval {
			e.bus.Publish(event.NewApprovalRequiredEvent(sessionID, plan.TaskID, action.Describe()))
			decision, err := e.prompter.RequestApproval(ctx, action.Describe())
			if err != nil {
				return fail(fmt.Errorf("approval request failed: %w", err))
			}
			if !decision.Approved {
				return fail(fmt.Errorf("%w: %s (%s)",
					errs.ErrApprovalDenied, action.Describe(), decision.Reason))
			}
		}

		switch action.Kind {
		case task.ActionFileWrite:
			if err := e.reserveModification(); err != nil {
				return fail(err)
			}
			existed := e.store.Exists(action.Target)
			if dir := path.Dir(action.Target); dir != "." {
				if err := e.store.EnsureDir(dir); err != nil {
					return fail(fmt.Errorf("failed to prepare directory for %s: %w", action.Target, err))
				}
			}
			if err := e.store.WriteFileAtomic(action.Target, []byte(action.Content)); err != nil {
				return fail(fmt.Errorf("failed to write %s: %w", action.Target, err))
			}
			if existed {
				result.FilesModified = append(result.FilesModified, action.Target)
			} else {
				result.FilesCreated = append(result.FilesCreated, action.Target)
			}

		case task.ActionFileDelete:
			if err := e.reserveModification(); err != nil {
				return fail(err)
			}
			if err := e.store.DeleteFile(action.Target); err != nil {
				return fail(fmt.Errorf("failed to delete %s: %w", action.Target, err))
			}
			result.FilesModified = append(result.FilesModified, action.Target)

		case task.ActionCommand:
			line := commandLine(action.Program, action.Args)
			output, err := e.runCommand(ctx, action.Program, action.Args)
			result.CommandsRun = append(result.CommandsRun, line)
			if err != nil {
				e.logger.Debug("command output on failure",
					"command", line, "output", output)
				return fail(fmt.Errorf("command %q %w", line, err))
			}

		default:
			return fail(fmt.Errorf("%w: %q", errs.ErrUnknownAction, action.Kind))
		}
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}
