// Package gitops provides the source-control collaborator consumed by the
// checkpoint manager. It wraps the git CLI behind small interfaces so the
// core can be tested without a real repository.
package gitops

import (
	"os/exec"
	"strings"

	"github.com/hollis-day/autopilot/internal/errs"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CommandExecutor abstracts command execution for testability.
// This allows tests to mock git commands without executing them.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

// -----------------------------------------------------------------------------
// SourceControl contract
// -----------------------------------------------------------------------------

// Status is a summary of the working tree state.
type Status struct {
	Clean     bool
	Modified  []string
	Staged    []string
	Untracked []string
}

// SourceControl is the rollback contract consumed by the checkpoint
// manager. Implementations must be safe for concurrent use.
type SourceControl interface {
	// CanRollback reports whether commit-based rollback is available
	// (the directory is a git repository and git is usable).
	CanRollback() bool

	// CurrentCommit returns the commit reference of HEAD.
	CurrentCommit() (string, error)

	// StageFiles stages the given paths for the next commit.
	StageFiles(paths []string) error

	// CreateCommit commits staged changes and returns the new commit ref.
	CreateCommit(message string) (string, error)

	// RevertToCommit restores the working tree to the given commit.
	// It returns false when the revert could not be performed.
	RevertToCommit(ref string) bool

	// GetStatus returns the current working tree status.
	GetStatus() (Status, error)
}

// -----------------------------------------------------------------------------
// Git - CLI-backed SourceControl
// -----------------------------------------------------------------------------

// Git implements SourceControl using git CLI commands against one
// repository directory.
type Git struct {
	repoDir  string
	executor CommandExecutor
}

// New creates a Git rooted at the given repository directory.
func New(repoDir string) *Git {
	return &Git{
		repoDir:  repoDir,
		executor: NewCLICommandExecutor(),
	}
}

// NewWithExecutor creates a Git with a custom executor.
// This is primarily useful for testing.
func NewWithExecutor(repoDir string, executor CommandExecutor) *Git {
	return &Git{
		repoDir:  repoDir,
		executor: executor,
	}
}

// CanRollback reports whether the directory is inside a git work tree.
func (g *Git) CanRollback() bool {
	output, err := g.executor.Run(g.repoDir, "git", "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// CurrentCommit returns the full SHA of HEAD.
func (g *Git) CurrentCommit() (string, error) {
	output, err := g.executor.Run(g.repoDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", errs.NewTaskError("failed to resolve HEAD", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// StageFiles stages the given paths. Missing paths are staged as
// deletions, matching git's own semantics for `git add -A -- <path>`.
func (g *Git) StageFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, paths...)
	output, err := g.executor.Run(g.repoDir, "git", args...)
	if err != nil {
		return errs.NewTaskError("failed to stage files: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

// CreateCommit commits staged changes and returns the resulting SHA.
// An empty staging area is not an error; the current HEAD is returned.
func (g *Git) CreateCommit(message string) (string, error) {
	output, err := g.executor.Run(g.repoDir, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return g.CurrentCommit()
		}
		return "", errs.NewTaskError("failed to commit: "+strings.TrimSpace(string(output)), err)
	}
	return g.CurrentCommit()
}

// RevertToCommit hard-resets the working tree to the given commit.
func (g *Git) RevertToCommit(ref string) bool {
	if ref == "" {
		return false
	}
	return g.executor.RunQuiet(g.repoDir, "git", "reset", "--hard", ref) == nil
}

// GetStatus parses `git status --porcelain` into a Status summary.
func (g *Git) GetStatus() (Status, error) {
	output, err := g.executor.Run(g.repoDir, "git", "status", "--porcelain")
	if err != nil {
		return Status{}, errs.NewTaskError("failed to check git status", err)
	}

	status := Status{}
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}
		index, tree, path := line[0], line[1], line[3:]
		switch {
		case index == '?' && tree == '?':
			status.Untracked = append(status.Untracked, path)
		case index != ' ':
			status.Staged = append(status.Staged, path)
		case tree != ' ':
			status.Modified = append(status.Modified, path)
		}
	}
	status.Clean = len(status.Modified) == 0 && len(status.Staged) == 0 && len(status.Untracked) == 0
	return status, nil
}
