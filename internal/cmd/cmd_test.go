package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hollis-day/autopilot/internal/checkpoint"
	"github.com/hollis-day/autopilot/internal/logging"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if rootCmd.Use != "autopilot" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "autopilot")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"run", "status", "checkpoints", "plan", "logs", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestPlanValidateCommand(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	plan := `
tasks:
  - id: hello
    title: Write the greeting
    actions:
      - kind: file_write
        target: greeting.txt
        content: hello
`
	if err := os.WriteFile(planPath, []byte(plan), 0644); err != nil {
		t.Fatalf("failed to write plan: %v", err)
	}

	if err := runPlanValidate(planValidateCmd, []string{planPath}); err != nil {
		t.Errorf("expected valid plan, got error: %v", err)
	}
}

func TestPlanValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	plan := `
tasks:
  - id: broken
    actions:
      - kind: file_write
`
	if err := os.WriteFile(planPath, []byte(plan), 0644); err != nil {
		t.Fatalf("failed to write plan: %v", err)
	}

	err := runPlanValidate(planValidateCmd, []string{planPath})
	if err == nil {
		t.Fatal("expected an error for a file_write action without a target")
	}
	if !strings.Contains(err.Error(), "target") {
		t.Errorf("error should name the missing field, got: %v", err)
	}
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", colorGray},
		{"INFO", colorBlue},
		{"warn", colorYellow},
		{"ERROR", colorRed},
		{"bogus", colorReset},
	}
	for _, tt := range tests {
		if got := levelColor(tt.level); got != tt.want {
			t.Errorf("levelColor(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestFormatLogEntry(t *testing.T) {
	entry := logging.LogEntry{
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "task complete",
		TaskID:    "hello",
		Phase:     "2",
	}

	out := formatLogEntry(entry)
	for _, want := range []string{"09:30:00", "[INFO]", "task complete", "task_id=hello", "phase=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted entry missing %q: %s", want, out)
		}
	}
}

func TestBuildLogFilter(t *testing.T) {
	logsLevel = "warn"
	logsSince = "1h"
	logsTaskID = "hello"
	defer func() {
		logsLevel, logsSince, logsTaskID = "", "", ""
	}()

	filter, err := buildLogFilter()
	if err != nil {
		t.Fatalf("buildLogFilter failed: %v", err)
	}
	if filter.Level != logging.LevelWarn {
		t.Errorf("filter.Level = %q, want %q", filter.Level, logging.LevelWarn)
	}
	if filter.TaskID != "hello" {
		t.Errorf("filter.TaskID = %q, want %q", filter.TaskID, "hello")
	}
	if filter.StartTime.IsZero() {
		t.Error("filter.StartTime should be set")
	}
	if time.Since(filter.StartTime) < 59*time.Minute {
		t.Errorf("filter.StartTime should be about an hour ago, got %v", filter.StartTime)
	}
}

func TestBuildLogFilter_BadDuration(t *testing.T) {
	logsSince = "not-a-duration"
	defer func() { logsSince = "" }()

	if _, err := buildLogFilter(); err == nil {
		t.Error("expected an error for an invalid duration")
	}
}

func TestRestoreSummary(t *testing.T) {
	gitRes := checkpoint.RestoreResult{Success: true, UsedGitRevert: true}
	if got := restoreSummary(gitRes, "phase-1-42"); got != "Restored phase-1-42 via git revert" {
		t.Errorf("git revert summary = %q", got)
	}

	fileRes := checkpoint.RestoreResult{
		Success:       true,
		FilesRestored: []string{"a.txt", "b.txt"},
	}
	if got := restoreSummary(fileRes, "phase-2-99"); got != "Restored 2 file(s) from phase-2-99" {
		t.Errorf("file restore summary = %q", got)
	}
}

func TestResolveCheckpointSession_NoCheckpoints(t *testing.T) {
	sessionID, err := resolveCheckpointSession(t.TempDir())
	if err != nil {
		t.Fatalf("resolveCheckpointSession failed: %v", err)
	}
	if sessionID != "" {
		t.Errorf("expected empty session, got %q", sessionID)
	}
}

func TestResolveCheckpointSession_PicksMostRecent(t *testing.T) {
	workspace := t.TempDir()
	older := filepath.Join(workspace, "checkpoints", "sess-old")
	newer := filepath.Join(workspace, "checkpoints", "sess-new")
	for _, dir := range []string{older, newer} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	sessionID, err := resolveCheckpointSession(workspace)
	if err != nil {
		t.Fatalf("resolveCheckpointSession failed: %v", err)
	}
	if sessionID != "sess-new" {
		t.Errorf("expected sess-new, got %q", sessionID)
	}
}
