package checkpoint

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/gitops"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/storage"
)

const (
	checkpointsDir = "checkpoints"
	recordExt      = ".ckpt"
)

// RestoreResult reports the outcome of a checkpoint restore.
type RestoreResult struct {
	Success       bool
	FilesRestored []string
	UsedGitRevert bool
	Err           error
}

// Manager creates, restores, lists, and compacts checkpoints for a
// session. Records live under <store root>/checkpoints/<sessionID>/.
// Source control is optional; when absent, checkpoints carry only the
// inline file snapshot.
type Manager struct {
	store  storage.Store
	sc     gitops.SourceControl
	bus    *event.Bus
	logger *logging.Logger

	// now is swappable for tests that need deterministic ids.
	now func() time.Time
}

// NewManager creates a checkpoint manager. sc may be nil when the
// working directory is not under source control.
func NewManager(store storage.Store, sc gitops.SourceControl, bus *event.Bus, logger *logging.Logger) *Manager {
	return &Manager{
		store:  store,
		sc:     sc,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Create snapshots the given files under a new checkpoint and returns
// its id (format "phase-<phase>-<epoch-millis>"). Unreadable files are
// skipped rather than failing the whole checkpoint. When source
// control reports rollback capability the files are also committed and
// the commit ref recorded for the fast restore path.
func (m *Manager) Create(sessionID string, phase int, filePaths []string) (string, error) {
	createdAt := m.now()
	cp := Checkpoint{
		ID:        fmt.Sprintf("phase-%d-%d", phase, createdAt.UnixMilli()),
		SessionID: sessionID,
		Phase:     phase,
		CreatedAt: createdAt,
	}

	for _, p := range filePaths {
		content, err := m.store.ReadFile(p)
		if err != nil {
			m.logger.Debug("skipping unreadable file in checkpoint",
				"path", p, "error", err)
			continue
		}
		cp.Files = append(cp.Files, FileSnapshot{
			Path:    p,
			Hash:    storage.CalculateHash(content),
			Content: content,
		})
	}

	if m.sc != nil && m.sc.CanRollback() {
		commit, err := m.commitSnapshot(cp)
		if err != nil {
			m.logger.Warn("checkpoint commit failed, keeping inline snapshot only",
				"checkpoint_id", cp.ID, "error", err)
		} else {
			cp.GitCommit = commit
		}
	}

	recordPath := m.recordPath(sessionID, cp.ID)
	if err := m.store.EnsureDir(path.Dir(recordPath)); err != nil {
		return "", errs.NewCheckpointError("failed to create checkpoint directory", err).
			WithSessionID(sessionID)
	}
	if err := m.store.WriteFileAtomic(recordPath, encode(cp)); err != nil {
		return "", errs.NewCheckpointError("failed to write checkpoint record", err).
			WithCheckpointID(cp.ID).
			WithSessionID(sessionID)
	}

	m.logger.Info("checkpoint created",
		"checkpoint_id", cp.ID,
		"phase", phase,
		"file_count", len(cp.Files),
		"git_commit", cp.GitCommit)
	m.bus.Publish(event.NewCheckpointCreatedEvent(sessionID, cp.ID, phase, len(cp.Files)))
	return cp.ID, nil
}

// commitSnapshot stages and commits the snapshotted files, returning
// the resulting commit ref.
func (m *Manager) commitSnapshot(cp Checkpoint) (string, error) {
	paths := make([]string, len(cp.Files))
	for i, f := range cp.Files {
		paths[i] = f.Path
	}
	if err := m.sc.StageFiles(paths); err != nil {
		return "", err
	}
	return m.sc.CreateCommit(fmt.Sprintf("checkpoint %s (session %s)", cp.ID, cp.SessionID))
}

// Restore brings the snapshotted files back to their checkpointed
// content. When the checkpoint carries a commit ref and source control
// can roll back, the commit revert is attempted first and no direct
// file writes happen on success; otherwise each file is written back
// individually.
func (m *Manager) Restore(sessionID, checkpointID string) RestoreResult {
	data, err := m.store.ReadFile(m.recordPath(sessionID, checkpointID))
	if err != nil {
		return m.restoreFailed(sessionID, checkpointID,
			errs.NewCheckpointError("failed to read checkpoint record", errs.Join(errs.ErrCheckpointNotFound, err)).
				WithCheckpointID(checkpointID).
				WithSessionID(sessionID))
	}
	cp, err := decode(data)
	if err != nil {
		return m.restoreFailed(sessionID, checkpointID,
			errs.NewCheckpointError("failed to parse checkpoint record", err).
				WithCheckpointID(checkpointID).
				WithSessionID(sessionID))
	}

	if cp.GitCommit != "" && m.sc != nil && m.sc.CanRollback() {
		if m.sc.RevertToCommit(cp.GitCommit) {
			restored := make([]string, len(cp.Files))
			for i, f := range cp.Files {
				restored[i] = f.Path
			}
			m.logger.Info("checkpoint restored via commit revert",
				"checkpoint_id", checkpointID, "commit", cp.GitCommit)
			m.bus.Publish(event.NewRollbackPerformedEvent(sessionID, checkpointID, len(restored), true))
			return RestoreResult{Success: true, FilesRestored: restored, UsedGitRevert: true}
		}
		m.logger.Warn("commit revert failed, falling back to file restore",
			"checkpoint_id", checkpointID, "commit", cp.GitCommit)
	}

	var restored []string
	for _, f := range cp.Files {
		if err := m.store.WriteFileAtomic(f.Path, f.Content); err != nil {
			return m.restoreFailed(sessionID, checkpointID,
				errs.NewCheckpointError(fmt.Sprintf("failed to restore %s", f.Path), err).
					WithCheckpointID(checkpointID).
					WithSessionID(sessionID))
		}
		restored = append(restored, f.Path)
	}

	m.logger.Info("checkpoint restored via file writes",
		"checkpoint_id", checkpointID, "files_restored", len(restored))
	m.bus.Publish(event.NewRollbackPerformedEvent(sessionID, checkpointID, len(restored), false))
	return RestoreResult{Success: true, FilesRestored: restored}
}

func (m *Manager) restoreFailed(sessionID, checkpointID string, err error) RestoreResult {
	m.logger.Error("checkpoint restore failed",
		"checkpoint_id", checkpointID, "session_id", sessionID, "error", err)
	return RestoreResult{Err: err}
}

// List returns all parseable checkpoints for the session, newest
// first. A record that fails to parse is skipped individually and
// never aborts the listing.
func (m *Manager) List(sessionID string) ([]Checkpoint, error) {
	dir := path.Join(checkpointsDir, sessionID)
	names, err := m.store.ListDir(dir)
	if err != nil {
		if errs.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, errs.NewCheckpointError("failed to list checkpoint directory", err).
			WithSessionID(sessionID)
	}

	var checkpoints []Checkpoint
	for _, name := range names {
		if !strings.HasSuffix(name, recordExt) {
			continue
		}
		data, err := m.store.ReadFile(path.Join(dir, name))
		if err != nil {
			m.logger.Warn("skipping unreadable checkpoint record",
				"session_id", sessionID, "record", name, "error", err)
			continue
		}
		cp, err := decode(data)
		if err != nil {
			m.logger.Warn("skipping corrupt checkpoint record",
				"session_id", sessionID, "record", name, "error", err)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		if !checkpoints[i].CreatedAt.Equal(checkpoints[j].CreatedAt) {
			return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
		}
		return checkpoints[i].ID > checkpoints[j].ID
	})
	return checkpoints, nil
}

// Compact deletes checkpoint records not covered by the retention
// policy and returns the number deleted. Retained is the union of the
// first and last checkpoint of every phase plus the keep most-recent
// checkpoints overall; a record matching any criterion survives.
func (m *Manager) Compact(sessionID string, keep int) (int, error) {
	checkpoints, err := m.List(sessionID)
	if err != nil {
		return 0, err
	}
	if len(checkpoints) == 0 {
		return 0, nil
	}

	retain := make(map[string]bool)

	// keep most-recent overall; List is already newest first.
	for i := 0; i < keep && i < len(checkpoints); i++ {
		retain[checkpoints[i].ID] = true
	}

	// First and last of each phase by creation time.
	type bounds struct{ first, last Checkpoint }
	phases := make(map[int]bounds)
	for _, cp := range checkpoints {
		b, ok := phases[cp.Phase]
		if !ok {
			phases[cp.Phase] = bounds{first: cp, last: cp}
			continue
		}
		if cp.CreatedAt.Before(b.first.CreatedAt) {
			b.first = cp
		}
		if cp.CreatedAt.After(b.last.CreatedAt) {
			b.last = cp
		}
		phases[cp.Phase] = b
	}
	for _, b := range phases {
		retain[b.first.ID] = true
		retain[b.last.ID] = true
	}

	deleted := 0
	for _, cp := range checkpoints {
		if retain[cp.ID] {
			continue
		}
		if err := m.store.DeleteFile(m.recordPath(sessionID, cp.ID)); err != nil {
			m.logger.Warn("failed to delete checkpoint during compaction",
				"checkpoint_id", cp.ID, "error", err)
			continue
		}
		deleted++
	}

	m.logger.Info("checkpoints compacted",
		"session_id", sessionID,
		"retained", len(checkpoints)-deleted,
		"deleted", deleted)
	return deleted, nil
}

func (m *Manager) recordPath(sessionID, checkpointID string) string {
	return path.Join(checkpointsDir, sessionID, checkpointID+recordExt)
}
