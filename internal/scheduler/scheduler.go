package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/task"
)

// ExecutorFunc runs one task to completion and reports the outcome.
type ExecutorFunc func(ctx context.Context, t *task.Task, sessionID string) task.ExecutionResult

// Status is a snapshot of the scheduler's queue and worker state.
type Status struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
}

// entry is one queued unit of work. seq preserves FIFO order within
// equal priority.
type entry struct {
	task      *task.Task
	sessionID string
	seq       uint64
}

// Scheduler dispatches queued tasks to the executor with bounded
// concurrency. Ordering is by task priority (higher first), FIFO
// within equal priority. Failure of one task never blocks others;
// retry policy belongs to the engine, not here.
type Scheduler struct {
	bus           *event.Bus
	logger        *logging.Logger
	maxConcurrent int

	mu        sync.Mutex
	executor  ExecutorFunc
	queue     []*entry
	seq       uint64
	active    int
	completed int
	failed    int
	running   bool
	draining  bool
	wg        sync.WaitGroup
}

// New creates a scheduler with the given concurrency limit. Limits
// below one are raised to one.
func New(bus *event.Bus, logger *logging.Logger, maxConcurrent int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		bus:           bus,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// SetExecutor registers the function used to run tasks. It must be set
// before Start.
func (s *Scheduler) SetExecutor(fn ExecutorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor = fn
}

// Start begins dispatching queued tasks.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executor == nil {
		return fmt.Errorf("%w: call SetExecutor before Start", errs.ErrNoExecutor)
	}
	if s.draining {
		return errs.ErrSchedulerStopped
	}
	if s.running {
		return nil
	}
	s.running = true
	s.logger.Info("scheduler started", "max_concurrent", s.maxConcurrent)
	s.advanceLocked()
	return nil
}

// Stop pauses dispatch. Queued tasks stay queued and in-flight tasks
// run to completion; Start resumes dispatch.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.logger.Info("scheduler stopped", "queued", len(s.queue), "active", s.active)
}

// Shutdown stops intake and dispatch, then waits for in-flight tasks
// to drain. It returns the context error when the deadline expires
// before the drain completes.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown deadline expired with tasks in flight")
		return ctx.Err()
	}
}

// Enqueue appends one task to the work queue.
func (s *Scheduler) Enqueue(t *task.Task, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return fmt.Errorf("%w: cannot enqueue %s", errs.ErrSchedulerStopped, t.ID)
	}

	t.Status = task.StatusPending
	s.seq++
	s.queue = append(s.queue, &entry{task: t, sessionID: sessionID, seq: s.seq})
	s.logger.Debug("task enqueued",
		"task_id", t.ID, "priority", t.Priority, "queued", len(s.queue))
	if s.running {
		s.advanceLocked()
	}
	return nil
}

// EnqueueAll appends the tasks in order.
func (s *Scheduler) EnqueueAll(tasks []*task.Task, sessionID string) error {
	for _, t := range tasks {
		if err := s.Enqueue(t, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// Status returns a snapshot of queue and worker counts.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Queued:    len(s.queue),
		Active:    s.active,
		Completed: s.completed,
		Failed:    s.failed,
	}
}

// advanceLocked dispatches queued tasks while worker slots are free.
// Callers must hold s.mu.
func (s *Scheduler) advanceLocked() {
	for s.running && s.active < s.maxConcurrent && len(s.queue) > 0 {
		next := s.popLocked()
		s.active++
		next.task.Status = task.StatusInProgress
		s.wg.Add(1)
		go s.run(next)
	}
}

// popLocked removes and returns the highest-priority entry, FIFO
// within equal priority. Callers must hold s.mu.
func (s *Scheduler) popLocked() *entry {
	best := 0
	for i, e := range s.queue {
		if e.task.Priority > s.queue[best].task.Priority {
			best = i
			continue
		}
		if e.task.Priority == s.queue[best].task.Priority && e.seq < s.queue[best].seq {
			best = i
		}
	}
	next := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	return next
}

// run executes one task on a worker slot and frees the slot when done.
func (s *Scheduler) run(e *entry) {
	defer s.wg.Done()

	s.logger.Info("dispatching task",
		"task_id", e.task.ID, "title", e.task.Title, "priority", e.task.Priority)
	result := s.executor(context.Background(), e.task, e.sessionID)

	s.mu.Lock()
	s.active--
	if result.Success {
		e.task.Status = task.StatusComplete
		e.task.LastError = ""
		s.completed++
	} else {
		e.task.Status = task.StatusFailed
		e.task.LastError = result.Error
		s.failed++
	}
	s.advanceLocked()
	s.mu.Unlock()

	s.logger.Info("task finished",
		"task_id", e.task.ID, "success", result.Success, "error", result.Error)
	s.bus.Publish(event.NewTaskCompletedEvent(e.sessionID, e.task.ID, result.Success, result.Error))
}
