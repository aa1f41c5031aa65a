package gitops

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeExecutor records commands and returns scripted responses.
type fakeExecutor struct {
	commands  [][]string
	responses map[string]fakeResponse
}

type fakeResponse struct {
	output string
	err    error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{responses: make(map[string]fakeResponse)}
}

func (f *fakeExecutor) respond(key, output string, err error) {
	f.responses[key] = fakeResponse{output: output, err: err}
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	full := append([]string{name}, args...)
	f.commands = append(f.commands, full)
	key := strings.Join(full, " ")
	for prefix, resp := range f.responses {
		if strings.HasPrefix(key, prefix) {
			return []byte(resp.output), resp.err
		}
	}
	return nil, nil
}

func (f *fakeExecutor) RunQuiet(dir string, name string, args ...string) error {
	_, err := f.Run(dir, name, args...)
	return err
}

func TestGit_CanRollback(t *testing.T) {
	exec := newFakeExecutor()
	exec.respond("git rev-parse --is-inside-work-tree", "true\n", nil)

	g := NewWithExecutor("/repo", exec)
	if !g.CanRollback() {
		t.Error("expected CanRollback true inside a work tree")
	}

	exec.respond("git rev-parse --is-inside-work-tree", "", errors.New("not a repo"))
	if g.CanRollback() {
		t.Error("expected CanRollback false outside a work tree")
	}
}

func TestGit_CreateCommitReturnsHead(t *testing.T) {
	exec := newFakeExecutor()
	exec.respond("git commit", "[main abc1234] checkpoint\n", nil)
	exec.respond("git rev-parse HEAD", "abc1234def\n", nil)

	g := NewWithExecutor("/repo", exec)
	ref, err := g.CreateCommit("checkpoint phase-1")
	if err != nil {
		t.Fatalf("CreateCommit failed: %v", err)
	}
	if ref != "abc1234def" {
		t.Errorf("expected HEAD sha, got %q", ref)
	}
}

func TestGit_CreateCommitNothingToCommit(t *testing.T) {
	exec := newFakeExecutor()
	exec.respond("git commit", "nothing to commit, working tree clean\n", errors.New("exit status 1"))
	exec.respond("git rev-parse HEAD", "abc1234def\n", nil)

	g := NewWithExecutor("/repo", exec)
	ref, err := g.CreateCommit("checkpoint phase-1")
	if err != nil {
		t.Fatalf("empty commit should not be an error, got %v", err)
	}
	if ref != "abc1234def" {
		t.Errorf("expected current HEAD, got %q", ref)
	}
}

func TestGit_StageFilesPassesPaths(t *testing.T) {
	exec := newFakeExecutor()
	g := NewWithExecutor("/repo", exec)

	if err := g.StageFiles([]string{"a.txt", "b.txt"}); err != nil {
		t.Fatalf("StageFiles failed: %v", err)
	}

	if len(exec.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(exec.commands))
	}
	got := strings.Join(exec.commands[0], " ")
	want := "git add -A -- a.txt b.txt"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGit_StageFilesEmptyIsNoop(t *testing.T) {
	exec := newFakeExecutor()
	g := NewWithExecutor("/repo", exec)

	if err := g.StageFiles(nil); err != nil {
		t.Fatalf("StageFiles(nil) failed: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Error("expected no commands for empty path list")
	}
}

func TestGit_RevertToCommit(t *testing.T) {
	exec := newFakeExecutor()
	g := NewWithExecutor("/repo", exec)

	if !g.RevertToCommit("abc123") {
		t.Error("expected revert to succeed")
	}

	exec.respond("git reset --hard bad", "", fmt.Errorf("unknown revision"))
	if g.RevertToCommit("bad") {
		t.Error("expected revert to fail for bad ref")
	}

	if g.RevertToCommit("") {
		t.Error("expected revert to fail for empty ref")
	}
}

func TestGit_GetStatus(t *testing.T) {
	exec := newFakeExecutor()
	exec.respond("git status --porcelain",
		" M modified.txt\nA  staged.txt\n?? new.txt\n", nil)

	g := NewWithExecutor("/repo", exec)
	status, err := g.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}

	if status.Clean {
		t.Error("expected dirty status")
	}
	if len(status.Modified) != 1 || status.Modified[0] != "modified.txt" {
		t.Errorf("unexpected modified list: %v", status.Modified)
	}
	if len(status.Staged) != 1 || status.Staged[0] != "staged.txt" {
		t.Errorf("unexpected staged list: %v", status.Staged)
	}
	if len(status.Untracked) != 1 || status.Untracked[0] != "new.txt" {
		t.Errorf("unexpected untracked list: %v", status.Untracked)
	}
}

func TestGit_GetStatusClean(t *testing.T) {
	exec := newFakeExecutor()
	exec.respond("git status --porcelain", "", nil)

	g := NewWithExecutor("/repo", exec)
	status, err := g.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !status.Clean {
		t.Error("expected clean status for empty porcelain output")
	}
}
