package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault_PassesValidation(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate cleanly, got %v", ValidationErrors(errs))
	}
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.MaxConcurrentTasks != 3 {
		t.Errorf("max_concurrent_tasks = %d", cfg.Scheduler.MaxConcurrentTasks)
	}
	if cfg.Engine.MaxIterations != 3 {
		t.Errorf("max_iterations = %d", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.ConfidenceThreshold != 0.8 {
		t.Errorf("confidence_threshold = %v", cfg.Engine.ConfidenceThreshold)
	}
	if cfg.Engine.PersistentFailureThreshold != 2 {
		t.Errorf("persistent_failure_threshold = %d", cfg.Engine.PersistentFailureThreshold)
	}
	if cfg.Engine.CommandTimeout() != 2*time.Minute {
		t.Errorf("command timeout = %v", cfg.Engine.CommandTimeout())
	}
	if cfg.Engine.InitialRetryDelay() != time.Second {
		t.Errorf("initial retry delay = %v", cfg.Engine.InitialRetryDelay())
	}
	if !cfg.Checkpoint.Enabled {
		t.Error("checkpointing should be enabled by default")
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxConcurrentTasks = 0
	cfg.Engine.ConfidenceThreshold = 1.5
	cfg.Engine.RetryBackoffMultiplier = 0.5
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %d: %v", len(errs), ValidationErrors(errs))
	}

	msg := ValidationErrors(errs).Error()
	for _, field := range []string{
		"scheduler.max_concurrent_tasks",
		"engine.confidence_threshold",
		"engine.retry_backoff_multiplier",
		"logging.level",
	} {
		if !strings.Contains(msg, field) {
			t.Errorf("combined error should mention %s, got %q", field, msg)
		}
	}
}

func TestResolveSessionDir(t *testing.T) {
	p := PathsConfig{}
	if got := p.ResolveSessionDir("/work"); got != "/work/.autopilot" {
		t.Errorf("default session dir = %q", got)
	}

	p.SessionDir = "state"
	if got := p.ResolveSessionDir("/work"); got != "/work/state" {
		t.Errorf("relative session dir = %q", got)
	}

	p.SessionDir = "/var/lib/autopilot"
	if got := p.ResolveSessionDir("/work"); got != "/var/lib/autopilot" {
		t.Errorf("absolute session dir = %q", got)
	}
}
