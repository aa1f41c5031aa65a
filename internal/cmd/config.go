package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hollis-day/autopilot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify autopilot configuration",
	Long: `View or modify autopilot configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  autopilot config set scheduler.max_concurrent_tasks 5
  autopilot config set engine.max_iterations 5
  autopilot config set checkpoint.rollback_on_failure true

Valid keys:
  scheduler.max_concurrent_tasks      - Parallel worker slots
  scheduler.shutdown_timeout_seconds  - Drain limit on shutdown
  scheduler.persist_queue             - Save pending queue on shutdown (true/false)
  engine.reflection_enabled           - Iterate until criteria hold (true/false)
  engine.max_iterations               - Reflection iteration cap
  engine.confidence_threshold         - Evaluator confidence accepted as success
  engine.persistent_failure_threshold - Repeats before pausing for guidance
  engine.pause_on_persistent_failure  - Ask for guidance on recurring failures (true/false)
  engine.max_file_modifications       - File write/delete budget (0 = unlimited)
  engine.require_destructive_approval - Gate destructive actions (true/false)
  engine.command_timeout_seconds      - Wall-clock limit per command attempt
  engine.max_command_retries          - Retry budget for transient failures
  checkpoint.enabled                  - Snapshot before each phase (true/false)
  checkpoint.rollback_on_failure      - Restore checkpoint when a task fails (true/false)
  checkpoint.compact_keep             - Recent checkpoints compaction retains
  checkpoint.use_git                  - Commit snapshots in git workspaces (true/false)
  logging.level                       - Log level (debug/info/warn/error)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/autopilot/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("scheduler:")
	fmt.Printf("  max_concurrent_tasks: %d\n", cfg.Scheduler.MaxConcurrentTasks)
	fmt.Printf("  shutdown_timeout_seconds: %d\n", cfg.Scheduler.ShutdownTimeoutSeconds)
	fmt.Printf("  persist_queue: %v\n", cfg.Scheduler.PersistQueue)

	fmt.Println("engine:")
	fmt.Printf("  reflection_enabled: %v\n", cfg.Engine.ReflectionEnabled)
	fmt.Printf("  max_iterations: %d\n", cfg.Engine.MaxIterations)
	fmt.Printf("  confidence_threshold: %.2f\n", cfg.Engine.ConfidenceThreshold)
	fmt.Printf("  persistent_failure_threshold: %d\n", cfg.Engine.PersistentFailureThreshold)
	fmt.Printf("  pause_on_persistent_failure: %v\n", cfg.Engine.PauseOnPersistentFailure)
	fmt.Printf("  max_file_modifications: %d\n", cfg.Engine.MaxFileModifications)
	fmt.Printf("  require_destructive_approval: %v\n", cfg.Engine.RequireDestructiveApproval)
	fmt.Printf("  command_timeout_seconds: %d\n", cfg.Engine.CommandTimeoutSeconds)
	fmt.Printf("  max_command_retries: %d\n", cfg.Engine.MaxCommandRetries)

	fmt.Println("checkpoint:")
	fmt.Printf("  enabled: %v\n", cfg.Checkpoint.Enabled)
	fmt.Printf("  rollback_on_failure: %v\n", cfg.Checkpoint.RollbackOnFailure)
	fmt.Printf("  compact_keep: %d\n", cfg.Checkpoint.CompactKeep)
	fmt.Printf("  use_git: %v\n", cfg.Checkpoint.UseGit)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"scheduler.max_concurrent_tasks":      "int",
		"scheduler.shutdown_timeout_seconds":  "int",
		"scheduler.persist_queue":             "bool",
		"engine.reflection_enabled":           "bool",
		"engine.max_iterations":               "int",
		"engine.confidence_threshold":         "float",
		"engine.persistent_failure_threshold": "int",
		"engine.pause_on_persistent_failure":  "bool",
		"engine.max_file_modifications":       "int",
		"engine.require_destructive_approval": "bool",
		"engine.command_timeout_seconds":      "int",
		"engine.max_command_retries":          "int",
		"engine.initial_retry_delay_ms":       "int",
		"engine.retry_backoff_multiplier":     "float",
		"engine.max_retry_delay_ms":           "int",
		"checkpoint.enabled":                  "bool",
		"checkpoint.rollback_on_failure":      "bool",
		"checkpoint.compact_keep":             "int",
		"checkpoint.use_git":                  "bool",
		"logging.enabled":                     "bool",
		"logging.level":                       "level",
		"logging.max_size_mb":                 "int",
		"logging.max_backups":                 "int",
		"paths.session_dir":                   "string",
		"paths.workspace":                     "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'autopilot config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		typedValue = value
	case "level":
		if !config.IsValidLogLevel(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: debug, info, warn, error", key, value)
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	case "float":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected number", key)
		}
		if floatVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = floatVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'autopilot config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Autopilot configuration

# Task dispatch
scheduler:
  # Number of tasks running in parallel
  max_concurrent_tasks: 3
  # How long shutdown waits for in-flight tasks
  shutdown_timeout_seconds: 30
  # Save the pending queue to the session directory on shutdown
  persist_queue: true

# Plan execution and the reflection loop
engine:
  # Iterate generate/evaluate until success criteria hold
  reflection_enabled: true
  # Iteration cap per task
  max_iterations: 3
  # Evaluator confidence accepted as success
  confidence_threshold: 0.8
  # How often one error may recur before pausing for guidance
  persistent_failure_threshold: 2
  pause_on_persistent_failure: true
  # File write/delete budget per run (0 = unlimited)
  max_file_modifications: 0
  # Ask before destructive actions
  require_destructive_approval: true
  # Wall-clock limit per command attempt, in seconds
  command_timeout_seconds: 120
  # Retry budget for transient command failures
  max_command_retries: 3

# Snapshots taken before each phase
checkpoint:
  enabled: true
  # Restore the phase checkpoint when a task fails
  rollback_on_failure: false
  # Recent checkpoints compaction retains beyond phase boundaries
  compact_keep: 5
  # Commit snapshots when the workspace is a git repository
  use_git: true

# Debug logging to the session directory
logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize autopilot's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/autopilot/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: AUTOPILOT_* (e.g., AUTOPILOT_ENGINE_MAX_ITERATIONS)")

	return nil
}
