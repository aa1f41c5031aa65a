package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/task"
	"github.com/hollis-day/autopilot/internal/util"
)

// loopState is the reflection loop's position in its state machine.
type loopState int

const (
	stateGenerating loopState = iota
	stateEvaluating
	stateDoneSuccess
	stateDoneExhausted
	stateEscalated
)

func (s loopState) String() string {
	switch s {
	case stateGenerating:
		return "generating"
	case stateEvaluating:
		return "evaluating"
	case stateDoneSuccess:
		return "done_success"
	case stateDoneExhausted:
		return "done_exhausted"
	case stateEscalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// reflectionLoop carries one ExecuteWithReflection run through the
// state machine generating -> evaluating -> {done_success,
// done_exhausted, escalated}.
type reflectionLoop struct {
	engine    *Engine
	generator Generator
	evaluator Evaluator
	task      *task.Task
	sessionID string
	key       string
	state     loopState
	guidance  string
}

func (l *reflectionLoop) transition(to loopState) {
	l.engine.logger.Debug("reflection state transition",
		"task_id", l.task.ID, "from", l.state.String(), "to", to.String())
	l.state = to
}

// ExecuteWithReflection runs the bounded iterate-evaluate loop for the
// task. Each iteration generates an attempt, evaluates completion, and
// either accepts (confidence at or above the threshold), escalates to
// the user on persistent failure, or re-plans. When reflection is
// disabled by configuration, a single generation and evaluation runs
// instead and the raw result is returned.
func (e *Engine) ExecuteWithReflection(ctx context.Context, t *task.Task, sessionID string) task.ExecutionResult {
	gen, eval := e.collaborators()
	if gen == nil || eval == nil {
		return task.Failure("engine has no generator or evaluator configured")
	}
	if !e.opts.ReflectionEnabled {
		return e.executeSingleAttempt(ctx, gen, eval, t, sessionID)
	}

	loop := &reflectionLoop{
		engine:    e,
		generator: gen,
		evaluator: eval,
		task:      t,
		sessionID: sessionID,
		key:       attemptKey(sessionID, t.ID),
		state:     stateGenerating,
	}
	return loop.run(ctx)
}

func (l *reflectionLoop) run(ctx context.Context) task.ExecutionResult {
	e := l.engine
	max := e.opts.MaxIterations

	e.bus.Publish(event.NewReflectionStartedEvent(l.sessionID, l.task.ID, max))
	e.logger.Info("reflection loop started",
		"task_id", l.task.ID, "max_iterations", max)

	var lastResult task.ExecutionResult
	for i := 1; i <= max; i++ {
		l.transition(stateGenerating)
		var failure *task.FailureContext
		if i > 1 {
			l.task.RetryCount++
			fc := e.failureContext(l.key, i, l.guidance)
			failure = &fc
		}
		result, err := l.generator.Generate(ctx, l.task, l.sessionID, failure)
		if err != nil {
			result = task.Failure(fmt.Sprintf("generator error: %v", err))
		}
		lastResult = result

		l.transition(stateEvaluating)
		eval, err := l.evaluator.Evaluate(ctx, l.task)
		if err != nil {
			eval = task.Evaluation{Reasoning: fmt.Sprintf("evaluator error: %v", err)}
		}

		e.appendAttempt(l.key, task.AttemptRecord{
			Iteration:  i,
			Timestamp:  time.Now(),
			Result:     result,
			Confidence: eval.Confidence,
			Reasoning:  eval.Reasoning,
		})
		e.bus.Publish(event.NewReflectionIterationEvent(
			l.sessionID, l.task.ID, i, result.Success, eval.Confidence, eval.Reasoning))
		e.logger.Info("reflection iteration evaluated",
			"task_id", l.task.ID,
			"iteration", fmt.Sprintf("%d/%d", i, max),
			"success", result.Success,
			"confidence", eval.Confidence)

		if eval.Confidence >= e.opts.ConfidenceThreshold {
			l.transition(stateDoneSuccess)
			e.bus.Publish(event.NewReflectionCompletedEvent(
				l.sessionID, l.task.ID, true, i, eval.Confidence, "confidence threshold met"))
			result.Success = true
			return result
		}

		if e.opts.PauseOnPersistentFailure && i < max {
			if abandoned, res := l.handlePersistentFailure(ctx, i, eval.Confidence); abandoned {
				return res
			}
		}

		if i < max {
			e.logger.Info("task not complete, re-planning",
				"task_id", l.task.ID, "iteration", i, "confidence", eval.Confidence)
		}
	}

	l.transition(stateDoneExhausted)
	err := fmt.Errorf("%w: reflection exhausted after %d iterations",
		errs.ErrIterationsExhausted, max)
	e.logger.Warn("reflection iterations exhausted",
		"task_id", l.task.ID, "max_iterations", max)
	e.bus.Publish(event.NewReflectionCompletedEvent(
		l.sessionID, l.task.ID, false, max, 0, err.Error()))

	result := lastResult
	result.Success = false
	result.Error = err.Error()
	return result
}

// handlePersistentFailure checks whether one error message has recurred
// often enough to pause for user guidance. Returned guidance feeds the
// next iteration's failure context; choosing to abandon escalates and
// ends the loop.
func (l *reflectionLoop) handlePersistentFailure(ctx context.Context, iteration int, confidence float64) (bool, task.ExecutionResult) {
	e := l.engine
	message, count := e.dominantFailure(l.key)
	if message == "" || count < e.opts.PersistentFailureThreshold {
		return false, task.ExecutionResult{}
	}

	summary := fmt.Sprintf("task %q has failed %d times with: %s",
		l.task.Title, count, util.TruncateString(message, 200))
	guidance, err := e.prompter.RequestGuidance(ctx, summary)
	if err != nil {
		e.logger.Warn("guidance request failed, continuing without it",
			"task_id", l.task.ID, "error", err)
		return false, task.ExecutionResult{}
	}
	if guidance.Abandon {
		l.transition(stateEscalated)
		e.logger.Warn("task abandoned after persistent failure",
			"task_id", l.task.ID, "iteration", iteration, "failure", message)
		e.bus.Publish(event.NewReflectionCompletedEvent(
			l.sessionID, l.task.ID, false, iteration, confidence, "abandoned by user"))
		return true, task.Failure(fmt.Sprintf("%v: %s", errs.ErrTaskAbandoned, message))
	}
	if guidance.Text != "" {
		e.logger.Info("user guidance received",
			"task_id", l.task.ID, "guidance", guidance.Text)
		l.guidance = guidance.Text
	}
	return false, task.ExecutionResult{}
}

// executeSingleAttempt is the non-reflective path: one generation, one
// evaluation, raw result returned as-is.
func (e *Engine) executeSingleAttempt(ctx context.Context, gen Generator, evaluator Evaluator, t *task.Task, sessionID string) task.ExecutionResult {
	result, err := gen.Generate(ctx, t, sessionID, nil)
	if err != nil {
		return task.Failure(fmt.Sprintf("generator error: %v", err))
	}

	eval, err := evaluator.Evaluate(ctx, t)
	if err != nil {
		e.logger.Warn("evaluation failed on single-attempt path",
			"task_id", t.ID, "error", err)
		return result
	}
	e.appendAttempt(attemptKey(sessionID, t.ID), task.AttemptRecord{
		Iteration:  1,
		Timestamp:  time.Now(),
		Result:     result,
		Confidence: eval.Confidence,
		Reasoning:  eval.Reasoning,
	})
	e.logger.Info("single attempt executed",
		"task_id", t.ID, "success", result.Success, "confidence", eval.Confidence)
	return result
}
