package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hollis-day/autopilot/internal/config"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/runner"
	"github.com/hollis-day/autopilot/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Run a plan file",
	Long: `Run every task in a YAML plan file against the workspace.

Tasks are dispatched by priority, executed through the reflection
loop, and checkpointed before each phase. The command exits non-zero
when any task fails.

Examples:
  # Run a plan in the current directory
  autopilot run plan.yaml

  # Run against another workspace, approving destructive actions
  autopilot run plan.yaml -w /path/to/project --yes

  # Re-run automatically whenever the plan file changes
  autopilot run plan.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runApproveAll bool
	runWatch      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runApproveAll, "yes", "y", false, "Approve destructive actions without prompting")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Watch the plan file and re-run on changes")
}

func runRun(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	workspace, err := resolveWorkspace(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runWatch {
		return watchAndRun(ctx, cfg, workspace, planPath)
	}

	failed, err := runPlanOnce(ctx, cfg, workspace, planPath)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d task(s) failed", failed)
	}
	return nil
}

// runPlanOnce builds a fresh hub, runs the plan file, and shuts the
// hub down. Each invocation is its own session.
func runPlanOnce(ctx context.Context, cfg *config.Config, workspace, planPath string) (int, error) {
	logger, err := sessionLogger(cfg, workspace)
	if err != nil {
		return 0, err
	}
	defer func() { _ = logger.Close() }()

	var prompter ui.Prompter
	if runApproveAll {
		prompter = &ui.AutoPrompter{ApproveAll: true}
	} else {
		prompter = ui.NewConsolePrompter()
	}

	hub, err := runner.New(workspace, cfg, prompter, logger)
	if err != nil {
		return 0, fmt.Errorf("failed to create runner: %w", err)
	}

	fmt.Printf("Session: %s\n", hub.SessionID())

	// RunPlanFile shuts the hub down itself on both exit paths.
	failed, runErr := hub.RunPlanFile(ctx, planPath)
	if runErr != nil {
		return failed, runErr
	}

	if failed > 0 {
		fmt.Printf("Done: %d task(s) failed\n", failed)
	} else {
		fmt.Println("Done: all tasks succeeded")
	}
	return failed, nil
}

// watchAndRun re-runs the plan whenever the plan file is written.
// Editors often replace files via rename, so the watch is on the
// containing directory and filtered to the plan's name.
func watchAndRun(ctx context.Context, cfg *config.Config, workspace, planPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	absPlan, err := filepath.Abs(planPath)
	if err != nil {
		return fmt.Errorf("failed to resolve plan path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPlan)); err != nil {
		return fmt.Errorf("failed to watch plan directory: %w", err)
	}

	run := func() {
		if failed, err := runPlanOnce(ctx, cfg, workspace, planPath); err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		} else if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d task(s) failed\n", failed)
		}
	}

	run()
	fmt.Println("Watching for plan changes... (Ctrl+C to stop)")

	// Editors fire bursts of events per save; debounce before re-running.
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPlan {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				fmt.Printf("\nPlan changed, re-running %s\n", planPath)
				run()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

// sessionLogger opens the session debug log, or a no-op logger when
// logging is disabled.
func sessionLogger(cfg *config.Config, workspace string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}

	dir := cfg.Paths.ResolveSessionDir(workspace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	logger, err := logging.NewLoggerWithRotation(dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}
