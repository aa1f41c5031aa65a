package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hollis-day/autopilot/internal/task"
)

const stateFileName = "scheduler-state.json"

// persistedEntry is one queued task in its serializable form.
type persistedEntry struct {
	Task      *task.Task `json:"task"`
	SessionID string     `json:"session_id"`
}

// persistedState is the serializable representation of the queue.
// Only queued (not yet dispatched) tasks are persisted.
type persistedState struct {
	Entries []persistedEntry `json:"entries"`
}

// SaveState writes the queued tasks to a JSON file in the given
// directory. The write is atomic: data goes to a temporary file first,
// then is renamed into place. A file lock is held for cross-process
// safety.
func (s *Scheduler) SaveState(dir string) error {
	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	s.mu.Lock()
	state := persistedState{Entries: make([]persistedEntry, 0, len(s.queue))}
	for _, e := range s.queue {
		state.Entries = append(state.Entries, persistedEntry{
			Task:      e.task,
			SessionID: e.sessionID,
		})
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scheduler state: %w", err)
	}

	target := filepath.Join(dir, stateFileName)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// RestoreState loads a previously saved queue from the given directory
// and enqueues its tasks in their saved order. It returns the number
// of tasks restored; a missing state file restores nothing.
func (s *Scheduler) RestoreState(dir string) (int, error) {
	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return 0, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read state file: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("unmarshal scheduler state: %w", err)
	}

	for _, e := range state.Entries {
		if err := s.Enqueue(e.Task, e.SessionID); err != nil {
			return 0, err
		}
	}
	return len(state.Entries), nil
}
