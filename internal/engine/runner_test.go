package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRetryDelay_ExponentialWithCap(t *testing.T) {
	opts := DefaultOptions()
	opts.InitialRetryDelay = time.Second
	opts.RetryBackoffMultiplier = 2.0
	opts.MaxRetryDelay = 5 * time.Second
	e, _, _ := newTestEngine(t, opts)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // capped, would be 8s
		{5, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := e.retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCommandLine(t *testing.T) {
	if got := commandLine("ls", nil); got != "ls" {
		t.Errorf("commandLine with no args = %q", got)
	}
	if got := commandLine("git", []string{"status", "--short"}); got != "git status --short" {
		t.Errorf("commandLine = %q", got)
	}
}

func TestExecCommandRunner_Success(t *testing.T) {
	r := &ExecCommandRunner{Dir: t.TempDir()}

	output, exitCode, err := r.Run(context.Background(), "echo", []string{"hello"})
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if strings.TrimSpace(output) != "hello" {
		t.Errorf("unexpected output %q", output)
	}
}

func TestExecCommandRunner_MissingProgram(t *testing.T) {
	r := &ExecCommandRunner{Dir: t.TempDir()}

	_, exitCode, err := r.Run(context.Background(), "definitely-not-a-real-program-xyz", nil)
	if err == nil {
		t.Fatal("expected an error for a missing program")
	}
	if exitCode != 127 {
		t.Errorf("expected exit code 127 for command not found, got %d", exitCode)
	}
}
