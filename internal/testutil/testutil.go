// Package testutil provides testing utilities for autopilot tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository for testing.
// Returns the path to the repository. The repository is automatically
// cleaned up when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	// Initialize git repository
	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	// Configure git user for commits
	if err := runGit(dir, "config", "user.email", "test@autopilot.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Autopilot Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	// Create initial commit (revert paths require at least one commit)
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Create main branch (some systems default to master)
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// SetupTestRepoWithContent creates a test repository with specified files.
// The files map contains relative paths to file contents.
func SetupTestRepoWithContent(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := SetupTestRepo(t)

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}

	// Commit the additional files
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Add test files"); err != nil {
		t.Fatalf("failed to commit test files: %v", err)
	}

	return dir
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	if err := runGit(repoDir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(repoDir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// GetCommitCount returns the number of commits in the repository.
func GetCommitCount(t *testing.T, repoDir string) int {
	t.Helper()

	cmd := exec.Command("git", "rev-list", "--count", "HEAD")
	cmd.Dir = repoDir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("failed to count commits: %v", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		t.Fatalf("failed to parse commit count: %v", err)
	}
	return count
}

// HasUncommittedChanges returns true if the repository has uncommitted changes.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()

	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = repoDir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("failed to check git status: %v", err)
	}
	return len(output) > 0
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Autopilot Test",
		"GIT_AUTHOR_EMAIL=test@autopilot.dev",
		"GIT_COMMITTER_NAME=Autopilot Test",
		"GIT_COMMITTER_EMAIL=test@autopilot.dev",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}
