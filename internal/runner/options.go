package runner

import (
	"github.com/hollis-day/autopilot/internal/engine"
	"github.com/hollis-day/autopilot/internal/gitops"
)

// hubConfig holds optional configuration for a Hub.
type hubConfig struct {
	sessionID     string
	generator     engine.Generator
	sourceControl gitops.SourceControl
	commandRunner engine.CommandRunner
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(c *hubConfig) { c.sessionID = id }
}

// WithGenerator overrides the default plan-driven action generator.
func WithGenerator(g engine.Generator) Option {
	return func(c *hubConfig) { c.generator = g }
}

// WithSourceControl sets the source-control collaborator used for
// checkpoint commits. If nil and checkpoint.use_git is enabled, a git
// CLI implementation against the workspace is used.
func WithSourceControl(sc gitops.SourceControl) Option {
	return func(c *hubConfig) { c.sourceControl = sc }
}

// WithCommandRunner overrides how plan commands and command criteria
// are executed.
func WithCommandRunner(r engine.CommandRunner) Option {
	return func(c *hubConfig) { c.commandRunner = r }
}
