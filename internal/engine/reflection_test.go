package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/storage"
	"github.com/hollis-day/autopilot/internal/task"
	"github.com/hollis-day/autopilot/internal/ui"
)

// scriptedGenerator returns one result per call and records the
// failure contexts it was handed.
type scriptedGenerator struct {
	results  []task.ExecutionResult
	contexts []*task.FailureContext
}

func (g *scriptedGenerator) Generate(ctx context.Context, t *task.Task, sessionID string, failure *task.FailureContext) (task.ExecutionResult, error) {
	g.contexts = append(g.contexts, failure)
	idx := len(g.contexts) - 1
	if idx >= len(g.results) {
		idx = len(g.results) - 1
	}
	return g.results[idx], nil
}

func (g *scriptedGenerator) calls() int { return len(g.contexts) }

// scriptedEvaluator returns one confidence per call.
type scriptedEvaluator struct {
	confidences []float64
	calls       int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, t *task.Task) (task.Evaluation, error) {
	idx := e.calls
	e.calls++
	if idx >= len(e.confidences) {
		idx = len(e.confidences) - 1
	}
	c := e.confidences[idx]
	return task.Evaluation{Confidence: c, Reasoning: "scripted", Detected: true}, nil
}

func failingResult(msg string) task.ExecutionResult {
	return task.Failure(msg)
}

func reflectionOptions() Options {
	opts := DefaultOptions()
	opts.PauseOnPersistentFailure = false
	return opts
}

func newReflectionEngine(t *testing.T, gen Generator, eval Evaluator, opts Options) (*Engine, *event.Bus) {
	t.Helper()
	e, _, bus := newTestEngineWith(t, opts, &fakeRunner{script: []fakeRun{{}}}, &fakePrompter{approve: true}, gen, eval)
	return e, bus
}

func sampleTask() *task.Task {
	return &task.Task{ID: "task-1", Title: "write the report", Status: task.StatusPending}
}

func TestReflection_ExhaustsIterations(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("still broken")}}
	eval := &scriptedEvaluator{confidences: []float64{0.2}}
	e, bus := newReflectionEngine(t, gen, eval, reflectionOptions())

	result := e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if result.Success {
		t.Fatal("expected failure after exhaustion")
	}
	if gen.calls() != 3 {
		t.Errorf("generator must run exactly maxIterations times, got %d", gen.calls())
	}
	if !strings.Contains(result.Error, "exhausted") {
		t.Errorf("error must contain \"exhausted\", got %q", result.Error)
	}
	if !strings.Contains(result.Error, strconv.Itoa(3)) {
		t.Errorf("error must contain the iteration count, got %q", result.Error)
	}

	var started, iterations, completed int
	for _, ev := range bus.History("sess-1") {
		switch ev.EventType() {
		case event.TypeReflectionStarted:
			started++
		case event.TypeReflectionIteration:
			iterations++
		case event.TypeReflectionCompleted:
			completed++
		}
	}
	if started != 1 || iterations != 3 || completed != 1 {
		t.Errorf("expected 1 started / 3 iterations / 1 completed, got %d/%d/%d",
			started, iterations, completed)
	}
}

func TestReflection_RetryCountTracksReattempts(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("still broken")}}
	eval := &scriptedEvaluator{confidences: []float64{0.2}}
	e, _ := newReflectionEngine(t, gen, eval, reflectionOptions())

	tk := sampleTask()
	e.ExecuteWithReflection(context.Background(), tk, "sess-1")
	if tk.RetryCount != 2 {
		t.Errorf("3 iterations are 2 retries, got RetryCount=%d", tk.RetryCount)
	}

	gen = &scriptedGenerator{results: []task.ExecutionResult{{Success: true}}}
	eval = &scriptedEvaluator{confidences: []float64{0.95}}
	e, _ = newReflectionEngine(t, gen, eval, reflectionOptions())

	tk = sampleTask()
	e.ExecuteWithReflection(context.Background(), tk, "sess-1")
	if tk.RetryCount != 0 {
		t.Errorf("first-try success is not a retry, got RetryCount=%d", tk.RetryCount)
	}
}

func TestReflection_EarlyExitOnConfidence(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{
		failingResult("first try failed"),
		{Success: true},
	}}
	eval := &scriptedEvaluator{confidences: []float64{0.3, 0.95}}
	e, _ := newReflectionEngine(t, gen, eval, reflectionOptions())

	result := e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if !result.Success {
		t.Fatalf("expected success on iteration 2: %s", result.Error)
	}
	if gen.calls() != 2 {
		t.Errorf("expected strict early exit after 2 iterations, got %d", gen.calls())
	}
	if strings.Contains(result.Error, "exhausted") {
		t.Errorf("no exhausted framing on success, got %q", result.Error)
	}
}

func TestReflection_FailureContextGrowsPerIteration(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{
		{Success: false, Error: "error one", FilesCreated: []string{"a.txt"}},
		{Success: false, Error: "error two", FilesModified: []string{"b.txt"}},
		{Success: false, Error: "error one"},
	}}
	eval := &scriptedEvaluator{confidences: []float64{0.1}}
	e, _ := newReflectionEngine(t, gen, eval, reflectionOptions())

	e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if gen.contexts[0] != nil {
		t.Error("first iteration must receive no failure context")
	}
	for i := 1; i < len(gen.contexts); i++ {
		fc := gen.contexts[i]
		if fc == nil {
			t.Fatalf("iteration %d missing failure context", i+1)
		}
		if len(fc.Attempts) != i {
			t.Errorf("iteration %d: expected %d prior attempts, got %d", i+1, i, len(fc.Attempts))
		}
		for _, rec := range fc.Attempts {
			if rec.Result.Error == "" {
				t.Errorf("failed attempt %d carries no error text", rec.Iteration)
			}
		}
	}

	// Third iteration sees both errors, "error one" counted once so far,
	// and the union of files touched.
	fc := gen.contexts[2]
	if len(fc.Patterns) != 2 {
		t.Fatalf("expected 2 failure patterns, got %+v", fc.Patterns)
	}
	if fc.Patterns[0].Message != "error one" || fc.Patterns[0].Count != 1 {
		t.Errorf("unexpected first pattern: %+v", fc.Patterns[0])
	}
	wantFiles := []string{"a.txt", "b.txt"}
	if len(fc.TouchedFiles) != len(wantFiles) {
		t.Fatalf("expected touched files %v, got %v", wantFiles, fc.TouchedFiles)
	}
	for i, f := range wantFiles {
		if fc.TouchedFiles[i] != f {
			t.Errorf("touched files[%d] = %q, want %q", i, fc.TouchedFiles[i], f)
		}
	}
}

func TestReflection_PersistentFailureCollectsGuidance(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("db connection failed")}}
	eval := &scriptedEvaluator{confidences: []float64{0.1}}
	prompter := &fakePrompter{approve: true, guidance: []ui.Guidance{{Text: "use the staging database"}}}

	opts := DefaultOptions()
	opts.MaxIterations = 4
	e, _, _ := newTestEngineWith(t, opts, &fakeRunner{script: []fakeRun{{}}}, prompter, gen, eval)

	e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if prompter.guidanceCalls == 0 {
		t.Fatal("expected guidance to be requested for a persistent failure")
	}

	var carried bool
	for _, fc := range gen.contexts {
		if fc != nil && fc.UserGuidance == "use the staging database" {
			carried = true
		}
	}
	if !carried {
		t.Error("guidance text should flow into a later failure context")
	}
}

func TestReflection_AbandonEscalates(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("db connection failed")}}
	eval := &scriptedEvaluator{confidences: []float64{0.1}}
	prompter := &fakePrompter{approve: true, guidance: []ui.Guidance{{Abandon: true}}}

	e, _, bus := newTestEngineWith(t, DefaultOptions(), &fakeRunner{script: []fakeRun{{}}}, prompter, gen, eval)

	result := e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if result.Success {
		t.Fatal("expected failure after abandonment")
	}
	if !strings.Contains(result.Error, errs.ErrTaskAbandoned.Error()) {
		t.Errorf("error should reflect abandonment, got %q", result.Error)
	}
	if gen.calls() != 2 {
		t.Errorf("loop must stop at the abandoned iteration, got %d generator calls", gen.calls())
	}

	var completedSuccess *bool
	for _, ev := range bus.History("sess-1") {
		if done, ok := ev.(event.ReflectionCompletedEvent); ok {
			completedSuccess = &done.Success
		}
	}
	if completedSuccess == nil || *completedSuccess {
		t.Error("expected a failed reflection.completed event")
	}
}

func TestReflection_DisabledRunsSingleAttempt(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{{Success: true}}}
	eval := &scriptedEvaluator{confidences: []float64{0.1}}

	opts := reflectionOptions()
	opts.ReflectionEnabled = false
	e, _ := newReflectionEngine(t, gen, eval, opts)

	result := e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	if gen.calls() != 1 {
		t.Errorf("expected exactly one attempt, got %d", gen.calls())
	}
	if !result.Success {
		t.Errorf("raw generator result should be returned, got failure %q", result.Error)
	}
	if strings.Contains(result.Error, "exhausted") {
		t.Errorf("single-attempt path must not use exhausted framing, got %q", result.Error)
	}
}

func TestReflection_AttemptHistoryIsRecorded(t *testing.T) {
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("nope")}}
	eval := &scriptedEvaluator{confidences: []float64{0.1}}
	e, _ := newReflectionEngine(t, gen, eval, reflectionOptions())

	e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")

	history := e.AttemptHistory("sess-1", "task-1")
	if len(history) != 3 {
		t.Fatalf("expected 3 attempt records, got %d", len(history))
	}
	for i, rec := range history {
		if rec.Iteration != i+1 {
			t.Errorf("record %d has iteration %d", i, rec.Iteration)
		}
	}

	if got := e.AttemptHistory("sess-1", "other-task"); len(got) != 0 {
		t.Errorf("unrelated task should have no history, got %d records", len(got))
	}
}

func TestReflection_NoReplanLogOnFinalIteration(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLogger(dir, logging.LevelDebug)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gen := &scriptedGenerator{results: []task.ExecutionResult{failingResult("still broken")}}
	eval := &scriptedEvaluator{confidences: []float64{0.2}}
	e := NewEngine(store, event.NewBus(), &fakePrompter{approve: true},
		&fakeRunner{script: []fakeRun{{}}}, gen, eval, logger, reflectionOptions())

	e.ExecuteWithReflection(context.Background(), sampleTask(), "sess-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	// 3 iterations, but the last one exhausts instead of re-planning.
	if got := strings.Count(string(data), "task not complete, re-planning"); got != 2 {
		t.Errorf("expected 2 re-planning log lines, got %d", got)
	}
}
