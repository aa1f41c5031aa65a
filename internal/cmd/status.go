package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hollis-day/autopilot/internal/config"
	"github.com/hollis-day/autopilot/internal/task"
	"github.com/hollis-day/autopilot/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace status",
	Long: `Display the state autopilot has recorded in the workspace: the
persisted task queue from the last shutdown and the checkpoints of
the most recent session.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusLabelStyle  = lipgloss.NewStyle().Faint(true)
	statusEmptyStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
)

// queueState mirrors the scheduler's persisted queue file.
type queueState struct {
	Entries []struct {
		Task      *task.Task `json:"task"`
		SessionID string     `json:"session_id"`
	} `json:"entries"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	workspace, err := resolveWorkspace(cfg)
	if err != nil {
		return err
	}

	fmt.Println(statusHeaderStyle.Render("Workspace"))
	fmt.Printf("  %s %s\n\n", statusLabelStyle.Render("path:"), workspace)

	if err := printQueueStatus(cfg, workspace); err != nil {
		return err
	}
	return printCheckpointStatus(cfg, workspace)
}

func printQueueStatus(cfg *config.Config, workspace string) error {
	fmt.Println(statusHeaderStyle.Render("Pending queue"))

	statePath := filepath.Join(cfg.Paths.ResolveSessionDir(workspace), "scheduler-state.json")
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("  %s\n\n", statusEmptyStyle.Render("empty"))
			return nil
		}
		return fmt.Errorf("failed to read queue state: %w", err)
	}

	var state queueState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse queue state: %w", err)
	}
	if len(state.Entries) == 0 {
		fmt.Printf("  %s\n\n", statusEmptyStyle.Render("empty"))
		return nil
	}

	for _, e := range state.Entries {
		if e.Task == nil {
			continue
		}
		title := util.TruncateANSI(statusLabelStyle.Render(e.Task.Title), 60)
		fmt.Printf("  [p%d] %s  %s\n", e.Task.Priority, e.Task.ID, title)
	}
	fmt.Println()
	return nil
}

func printCheckpointStatus(cfg *config.Config, workspace string) error {
	fmt.Println(statusHeaderStyle.Render("Checkpoints"))

	mgr, _, err := openManager(cfg)
	if err != nil {
		return err
	}
	sessionID, err := resolveCheckpointSession(workspace)
	if err != nil {
		return err
	}
	if sessionID == "" {
		fmt.Printf("  %s\n", statusEmptyStyle.Render("none"))
		return nil
	}

	checkpoints, err := mgr.List(sessionID)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	fmt.Printf("  %s %s\n", statusLabelStyle.Render("session:"), sessionID)
	fmt.Printf("  %s %d\n", statusLabelStyle.Render("count:"), len(checkpoints))
	if len(checkpoints) > 0 {
		latest := checkpoints[0]
		fmt.Printf("  %s %s (phase %d, %s)\n",
			statusLabelStyle.Render("latest:"),
			latest.ID, latest.Phase, latest.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
