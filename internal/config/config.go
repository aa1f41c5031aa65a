package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete autopilot configuration
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Paths      PathsConfig      `mapstructure:"paths"`
}

// SchedulerConfig controls task dispatch
type SchedulerConfig struct {
	// MaxConcurrentTasks is the number of parallel worker slots
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// ShutdownTimeoutSeconds bounds how long shutdown waits for in-flight tasks
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	// PersistQueue saves the pending queue to the session directory on shutdown
	PersistQueue bool `mapstructure:"persist_queue"`
}

// EngineConfig controls plan execution and the reflection loop
type EngineConfig struct {
	// ReflectionEnabled selects the iterate-evaluate loop; when false each
	// task gets exactly one generation and evaluation attempt
	ReflectionEnabled bool `mapstructure:"reflection_enabled"`
	// MaxIterations bounds the reflection loop (default: 3)
	MaxIterations int `mapstructure:"max_iterations"`
	// ConfidenceThreshold is the evaluator confidence accepted as success (default: 0.8)
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// PersistentFailureThreshold is how often one error message may recur
	// before the engine pauses for guidance (default: 2)
	PersistentFailureThreshold int `mapstructure:"persistent_failure_threshold"`
	// PauseOnPersistentFailure asks the user for guidance on recurring failures
	PauseOnPersistentFailure bool `mapstructure:"pause_on_persistent_failure"`
	// MaxFileModifications caps file writes and deletes per engine instance (0 = unlimited)
	MaxFileModifications int `mapstructure:"max_file_modifications"`
	// RequireDestructiveApproval gates destructive actions behind a prompt
	RequireDestructiveApproval bool `mapstructure:"require_destructive_approval"`
	// CommandTimeoutSeconds is the wall-clock limit per command attempt
	CommandTimeoutSeconds int `mapstructure:"command_timeout_seconds"`
	// MaxCommandRetries is the retry budget after a transient command failure (default: 3)
	MaxCommandRetries int `mapstructure:"max_command_retries"`
	// InitialRetryDelayMs, RetryBackoffMultiplier and MaxRetryDelayMs shape
	// the exponential backoff between command attempts
	InitialRetryDelayMs    int     `mapstructure:"initial_retry_delay_ms"`
	RetryBackoffMultiplier float64 `mapstructure:"retry_backoff_multiplier"`
	MaxRetryDelayMs        int     `mapstructure:"max_retry_delay_ms"`
}

// CheckpointConfig controls snapshot creation and compaction
type CheckpointConfig struct {
	// Enabled creates a checkpoint before each risky phase
	Enabled bool `mapstructure:"enabled"`
	// RollbackOnFailure restores the phase checkpoint when a task fails
	RollbackOnFailure bool `mapstructure:"rollback_on_failure"`
	// CompactKeep is the number of most-recent checkpoints compaction
	// retains beyond phase boundaries
	CompactKeep int `mapstructure:"compact_keep"`
	// UseGit commits snapshots when the workspace is a git repository
	UseGit bool `mapstructure:"use_git"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled turns on debug logging to the session directory
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size before rotation
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where autopilot keeps its state
type PathsConfig struct {
	// SessionDir is where session state lives (default: .autopilot)
	SessionDir string `mapstructure:"session_dir"`
	// Workspace is the root all file actions resolve against (default: the
	// current directory)
	Workspace string `mapstructure:"workspace"`
}

// CommandTimeout returns the command timeout as a time.Duration
func (c *EngineConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// InitialRetryDelay returns the initial backoff delay as a time.Duration
func (c *EngineConfig) InitialRetryDelay() time.Duration {
	return time.Duration(c.InitialRetryDelayMs) * time.Millisecond
}

// MaxRetryDelay returns the backoff cap as a time.Duration
func (c *EngineConfig) MaxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMs) * time.Millisecond
}

// ShutdownTimeout returns the shutdown drain limit as a time.Duration
func (c *SchedulerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ResolveSessionDir resolves the session directory against baseDir when
// it is relative
func (p *PathsConfig) ResolveSessionDir(baseDir string) string {
	dir := p.SessionDir
	if dir == "" {
		dir = ".autopilot"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrentTasks:     3,
			ShutdownTimeoutSeconds: 30,
			PersistQueue:           true,
		},
		Engine: EngineConfig{
			ReflectionEnabled:          true,
			MaxIterations:              3,
			ConfidenceThreshold:        0.8,
			PersistentFailureThreshold: 2,
			PauseOnPersistentFailure:   true,
			MaxFileModifications:       0, // No limit by default
			RequireDestructiveApproval: true,
			CommandTimeoutSeconds:      120,
			MaxCommandRetries:          3,
			InitialRetryDelayMs:        1000,
			RetryBackoffMultiplier:     2.0,
			MaxRetryDelayMs:            30000,
		},
		Checkpoint: CheckpointConfig{
			Enabled:           true,
			RollbackOnFailure: false,
			CompactKeep:       5,
			UseGit:            true,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			SessionDir: "", // Empty means use default: .autopilot
			Workspace:  "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.max_concurrent_tasks", defaults.Scheduler.MaxConcurrentTasks)
	viper.SetDefault("scheduler.shutdown_timeout_seconds", defaults.Scheduler.ShutdownTimeoutSeconds)
	viper.SetDefault("scheduler.persist_queue", defaults.Scheduler.PersistQueue)

	// Engine defaults
	viper.SetDefault("engine.reflection_enabled", defaults.Engine.ReflectionEnabled)
	viper.SetDefault("engine.max_iterations", defaults.Engine.MaxIterations)
	viper.SetDefault("engine.confidence_threshold", defaults.Engine.ConfidenceThreshold)
	viper.SetDefault("engine.persistent_failure_threshold", defaults.Engine.PersistentFailureThreshold)
	viper.SetDefault("engine.pause_on_persistent_failure", defaults.Engine.PauseOnPersistentFailure)
	viper.SetDefault("engine.max_file_modifications", defaults.Engine.MaxFileModifications)
	viper.SetDefault("engine.require_destructive_approval", defaults.Engine.RequireDestructiveApproval)
	viper.SetDefault("engine.command_timeout_seconds", defaults.Engine.CommandTimeoutSeconds)
	viper.SetDefault("engine.max_command_retries", defaults.Engine.MaxCommandRetries)
	viper.SetDefault("engine.initial_retry_delay_ms", defaults.Engine.InitialRetryDelayMs)
	viper.SetDefault("engine.retry_backoff_multiplier", defaults.Engine.RetryBackoffMultiplier)
	viper.SetDefault("engine.max_retry_delay_ms", defaults.Engine.MaxRetryDelayMs)

	// Checkpoint defaults
	viper.SetDefault("checkpoint.enabled", defaults.Checkpoint.Enabled)
	viper.SetDefault("checkpoint.rollback_on_failure", defaults.Checkpoint.RollbackOnFailure)
	viper.SetDefault("checkpoint.compact_keep", defaults.Checkpoint.CompactKeep)
	viper.SetDefault("checkpoint.use_git", defaults.Checkpoint.UseGit)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.session_dir", defaults.Paths.SessionDir)
	viper.SetDefault("paths.workspace", defaults.Paths.Workspace)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "autopilot")
	}
	// Fall back to ~/.config/autopilot
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autopilot"
	}
	return filepath.Join(home, ".config", "autopilot")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
