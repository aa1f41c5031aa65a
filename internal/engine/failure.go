package engine

import (
	"github.com/hollis-day/autopilot/internal/task"
)

func attemptKey(sessionID, taskID string) string {
	return sessionID + "/" + taskID
}

func (e *Engine) appendAttempt(key string, record task.AttemptRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[key] = append(e.attempts[key], record)
}

// AttemptHistory returns a copy of the attempt records for a task,
// oldest first.
func (e *Engine) AttemptHistory(sessionID, taskID string) []task.AttemptRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	records := e.attempts[attemptKey(sessionID, taskID)]
	out := make([]task.AttemptRecord, len(records))
	copy(out, records)
	return out
}

// failureContext assembles the evidence passed to the generator before
// iteration number iteration: all prior attempts, the recurring error
// patterns ordered by first occurrence, and the union of files touched.
func (e *Engine) failureContext(key string, iteration int, guidance string) task.FailureContext {
	e.mu.Lock()
	records := e.attempts[key]
	attempts := make([]task.AttemptRecord, len(records))
	copy(attempts, records)
	e.mu.Unlock()

	fc := task.FailureContext{
		Iteration:    iteration,
		Attempts:     attempts,
		UserGuidance: guidance,
	}

	patternIndex := make(map[string]int)
	seenFiles := make(map[string]bool)
	for _, rec := range attempts {
		if msg := rec.Result.Error; msg != "" {
			if idx, ok := patternIndex[msg]; ok {
				fc.Patterns[idx].Count++
				fc.Patterns[idx].LastSeen = rec.Timestamp
			} else {
				patternIndex[msg] = len(fc.Patterns)
				fc.Patterns = append(fc.Patterns, task.FailurePattern{
					Message:   msg,
					Count:     1,
					FirstSeen: rec.Timestamp,
					LastSeen:  rec.Timestamp,
				})
			}
		}
		for _, files := range [][]string{rec.Result.FilesCreated, rec.Result.FilesModified} {
			for _, f := range files {
				if !seenFiles[f] {
					seenFiles[f] = true
					fc.TouchedFiles = append(fc.TouchedFiles, f)
				}
			}
		}
	}
	return fc
}

// dominantFailure returns the most frequently recurring error message
// across the task's attempts and its occurrence count.
func (e *Engine) dominantFailure(key string) (string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[string]int)
	var message string
	best := 0
	for _, rec := range e.attempts[key] {
		msg := rec.Result.Error
		if msg == "" {
			continue
		}
		counts[msg]++
		if counts[msg] > best {
			best = counts[msg]
			message = msg
		}
	}
	return message, best
}
