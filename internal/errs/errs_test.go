package errs

import (
	"strings"
	"testing"
)

func TestClassifyCommandFailure_StrategicExitCodes(t *testing.T) {
	for _, code := range []int{1, 2, 126, 127} {
		if got := ClassifyCommandFailure(code, "some failure output"); got != ClassStrategic {
			t.Errorf("exit code %d: expected strategic, got %s", code, got)
		}
	}
}

func TestClassifyCommandFailure_TransientExitCodes(t *testing.T) {
	for _, code := range []int{3, 75, 128, 255} {
		if got := ClassifyCommandFailure(code, "some failure output"); got != ClassTransient {
			t.Errorf("exit code %d: expected transient, got %s", code, got)
		}
	}
}

func TestClassifyCommandFailure_TransientMarkersOverrideExitCode(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"timeout", "request timed out after 30s"},
		{"connection refused", "dial tcp: connection refused"},
		{"rate limit", "API rate limit exceeded"},
		{"resource busy", "device or resource busy"},
		{"deadline", "context deadline exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Exit code 1 is strategic on its own; the marker wins.
			if got := ClassifyCommandFailure(1, tt.output); got != ClassTransient {
				t.Errorf("output %q: expected transient, got %s", tt.output, got)
			}
		})
	}
}

func TestTaskError_Context(t *testing.T) {
	cause := New("boom")
	err := NewTaskError("generation failed", cause).WithTaskID("t1").WithPhase("generate")

	msg := err.Error()
	for _, want := range []string{"generation failed", "t1", "generate", "boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}

	if !Is(err, cause) {
		t.Error("expected errors.Is to match the wrapped cause")
	}
}

func TestCheckpointError_Unwrap(t *testing.T) {
	err := NewCheckpointError("restore failed", ErrCheckpointCorrupt).WithCheckpointID("phase-1-123")
	if !Is(err, ErrCheckpointCorrupt) {
		t.Error("expected errors.Is to match ErrCheckpointCorrupt")
	}
	if !strings.Contains(err.Error(), "phase-1-123") {
		t.Errorf("error message %q missing checkpoint ID", err.Error())
	}
}
