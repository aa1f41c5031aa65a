package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/hollis-day/autopilot/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autonomous task orchestrator",
	Long: `Autopilot runs a plan of tasks against a workspace: a scheduler
dispatches tasks by priority, an execution engine carries out each
task's actions and iterates until its success criteria hold, and a
checkpoint manager snapshots files so failed work can be rolled back.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/autopilot/config.yaml)")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "workspace directory (default is the current directory)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/autopilot")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("AUTOPILOT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., AUTOPILOT_ENGINE_MAX_ITERATIONS for engine.max_iterations
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// resolveWorkspace returns the configured workspace, falling back to
// the process working directory.
func resolveWorkspace(cfg *config.Config) (string, error) {
	if cfg.Paths.Workspace != "" {
		return cfg.Paths.Workspace, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return dir, nil
}
