package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollis-day/autopilot/internal/checkpoint"
	"github.com/hollis-day/autopilot/internal/config"
	"github.com/hollis-day/autopilot/internal/criteria"
	"github.com/hollis-day/autopilot/internal/engine"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/gitops"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/planfile"
	"github.com/hollis-day/autopilot/internal/scheduler"
	"github.com/hollis-day/autopilot/internal/storage"
	"github.com/hollis-day/autopilot/internal/task"
	"github.com/hollis-day/autopilot/internal/ui"
)

// planGenerator executes each task's fixed plan as its generation
// step. Reflection retries re-run the same plan; the failure context
// is carried for the evaluator's benefit and for logging.
type planGenerator struct {
	engine *engine.Engine

	mu    sync.RWMutex
	plans map[string]task.Plan
}

func (g *planGenerator) setPlans(plans map[string]task.Plan) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.plans = plans
}

func (g *planGenerator) Generate(ctx context.Context, t *task.Task, sessionID string, failure *task.FailureContext) (task.ExecutionResult, error) {
	g.mu.RLock()
	plan, ok := g.plans[t.ID]
	g.mu.RUnlock()
	if !ok {
		return task.Failure(fmt.Sprintf("no plan for task %s", t.ID)), nil
	}
	return g.engine.ExecutePlan(ctx, plan, sessionID), nil
}

// Hub wires the orchestration components together for one session:
// storage, event bus, checkpoint manager, execution engine, and
// scheduler. It owns the session lifecycle.
type Hub struct {
	sessionID string
	workspace string
	cfg       *config.Config
	logger    *logging.Logger

	bus         *event.Bus
	store       storage.Store
	checkpoints *checkpoint.Manager
	engine      *engine.Engine
	scheduler   *scheduler.Scheduler
	planGen     *planGenerator

	mu    sync.Mutex
	phase int
}

// New creates a Hub for the given workspace directory.
func New(workspace string, cfg *config.Config, prompter ui.Prompter, logger *logging.Logger, opts ...Option) (*Hub, error) {
	if workspace == "" {
		return nil, errors.New("runner: workspace is required")
	}
	if cfg == nil {
		return nil, errors.New("runner: config is required")
	}

	hc := &hubConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	store, err := storage.NewFS(workspace)
	if err != nil {
		return nil, fmt.Errorf("runner: open workspace: %w", err)
	}

	sessionID := hc.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sc := hc.sourceControl
	if sc == nil && cfg.Checkpoint.UseGit {
		sc = gitops.New(workspace)
	}

	cmdRunner := hc.commandRunner
	if cmdRunner == nil {
		cmdRunner = &engine.ExecCommandRunner{Dir: workspace}
	}

	bus := event.NewBus()
	checkpoints := checkpoint.NewManager(store, sc, bus, logger)
	evaluator := criteria.NewEvaluator(store, cmdRunner, logger)

	eng := engine.NewEngine(store, bus, prompter, cmdRunner, nil, evaluator, logger, engine.Options{
		MaxIterations:              cfg.Engine.MaxIterations,
		ConfidenceThreshold:        cfg.Engine.ConfidenceThreshold,
		ReflectionEnabled:          cfg.Engine.ReflectionEnabled,
		PersistentFailureThreshold: cfg.Engine.PersistentFailureThreshold,
		PauseOnPersistentFailure:   cfg.Engine.PauseOnPersistentFailure,
		MaxFileModifications:       cfg.Engine.MaxFileModifications,
		RequireDestructiveApproval: cfg.Engine.RequireDestructiveApproval,
		CommandTimeout:             cfg.Engine.CommandTimeout(),
		MaxCommandRetries:          cfg.Engine.MaxCommandRetries,
		InitialRetryDelay:          cfg.Engine.InitialRetryDelay(),
		RetryBackoffMultiplier:     cfg.Engine.RetryBackoffMultiplier,
		MaxRetryDelay:              cfg.Engine.MaxRetryDelay(),
	})

	planGen := &planGenerator{engine: eng, plans: map[string]task.Plan{}}
	gen := hc.generator
	if gen == nil {
		gen = planGen
	}
	eng.SetGenerator(gen)

	h := &Hub{
		sessionID:   sessionID,
		workspace:   workspace,
		cfg:         cfg,
		logger:      logger.WithSession(sessionID),
		bus:         bus,
		store:       store,
		checkpoints: checkpoints,
		engine:      eng,
		scheduler:   scheduler.New(bus, logger, cfg.Scheduler.MaxConcurrentTasks),
		planGen:     planGen,
	}
	h.scheduler.SetExecutor(h.executeTask)
	return h, nil
}

// SessionID returns the session identifier.
func (h *Hub) SessionID() string { return h.sessionID }

// Bus returns the session's event bus.
func (h *Hub) Bus() *event.Bus { return h.bus }

// Checkpoints returns the session's checkpoint manager.
func (h *Hub) Checkpoints() *checkpoint.Manager { return h.checkpoints }

// Scheduler returns the session's scheduler.
func (h *Hub) Scheduler() *scheduler.Scheduler { return h.scheduler }

// nextPhase returns a monotonically increasing phase number.
func (h *Hub) nextPhase() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phase++
	return h.phase
}

// executeTask runs one task through the engine, checkpointing around it
// when configured.
func (h *Hub) executeTask(ctx context.Context, t *task.Task, sessionID string) task.ExecutionResult {
	var checkpointID string
	if h.cfg.Checkpoint.Enabled {
		phase := h.nextPhase()
		files := h.planGen.taskFiles(t.ID)
		id, err := h.checkpoints.Create(sessionID, phase, files)
		if err != nil {
			h.logger.Warn("checkpoint creation failed, continuing without rollback",
				"task_id", t.ID, "error", err)
		} else {
			checkpointID = id
		}
	}

	result := h.engine.ExecuteWithReflection(ctx, t, sessionID)

	if !result.Success && h.cfg.Checkpoint.RollbackOnFailure && checkpointID != "" {
		restore := h.checkpoints.Restore(sessionID, checkpointID)
		if !restore.Success {
			h.logger.Error("rollback after task failure did not succeed",
				"task_id", t.ID, "checkpoint_id", checkpointID, "error", restore.Err)
		}
	}
	return result
}

// taskFiles returns the file targets the task's plan will touch.
func (g *planGenerator) taskFiles(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var files []string
	seen := make(map[string]bool)
	for _, a := range g.plans[taskID].Actions {
		if a.Target == "" || seen[a.Target] {
			continue
		}
		seen[a.Target] = true
		files = append(files, a.Target)
	}
	return files
}

// RunPlanFile loads a plan file, enqueues its tasks, and runs them to
// completion or until ctx is done. It returns the number of failed
// tasks.
func (h *Hub) RunPlanFile(ctx context.Context, path string) (int, error) {
	f, err := planfile.Load(path)
	if err != nil {
		return 0, err
	}
	return h.RunPlan(ctx, f)
}

// RunPlan enqueues and executes all tasks of a parsed plan file.
func (h *Hub) RunPlan(ctx context.Context, f *planfile.File) (int, error) {
	h.planGen.setPlans(f.BuildPlans())
	tasks := f.BuildTasks()

	done := make(chan struct{}, len(tasks))
	unsubscribe := h.bus.Subscribe(event.TypeTaskCompleted, func(event.Event) {
		done <- struct{}{}
	})
	defer unsubscribe()

	if err := h.scheduler.EnqueueAll(tasks, h.sessionID); err != nil {
		return 0, err
	}
	if err := h.scheduler.Start(); err != nil {
		return 0, err
	}

	h.logger.Info("session started",
		"tasks", len(tasks), "plan_session", f.Session)

	for completed := 0; completed < len(tasks); {
		select {
		case <-done:
			completed++
		case <-ctx.Done():
			_ = h.Shutdown()
			return h.countFailed(tasks), ctx.Err()
		}
	}

	if err := h.Shutdown(); err != nil {
		return h.countFailed(tasks), err
	}
	return h.countFailed(tasks), nil
}

func (h *Hub) countFailed(tasks []*task.Task) int {
	failed := 0
	for _, t := range tasks {
		if t.Status == task.StatusFailed {
			failed++
		}
	}
	return failed
}

// Shutdown drains the scheduler and persists the queue when
// configured.
func (h *Hub) Shutdown() error {
	ctx := context.Background()
	if timeout := h.cfg.Scheduler.ShutdownTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := h.scheduler.Shutdown(ctx)

	if h.cfg.Scheduler.PersistQueue {
		dir := h.cfg.Paths.ResolveSessionDir(h.workspace)
		if saveErr := h.saveQueue(dir); saveErr != nil {
			h.logger.Warn("failed to persist scheduler queue", "error", saveErr)
		}
	}
	return err
}

func (h *Hub) saveQueue(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return h.scheduler.SaveState(dir)
}

// CompactCheckpoints applies the retention policy to this session's
// checkpoints using the configured keep count.
func (h *Hub) CompactCheckpoints() (int, error) {
	return h.checkpoints.Compact(h.sessionID, h.cfg.Checkpoint.CompactKeep)
}

// WaitIdle polls until the scheduler has no queued or active work, or
// the timeout elapses. Intended for tests and watch mode.
func (h *Hub) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s := h.scheduler.Status()
		if s.Queued == 0 && s.Active == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
