package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hollis-day/autopilot/internal/checkpoint"
	"github.com/hollis-day/autopilot/internal/config"
	"github.com/hollis-day/autopilot/internal/event"
	"github.com/hollis-day/autopilot/internal/gitops"
	"github.com/hollis-day/autopilot/internal/logging"
	"github.com/hollis-day/autopilot/internal/storage"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and manage workspace checkpoints",
	Long: `Inspect and manage the checkpoints autopilot records before each
phase. Checkpoints live under the workspace and can restore files to
an earlier state, either through git or from inline snapshots.`,
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints",
	RunE:  runCheckpointsList,
}

var checkpointsRestoreCmd = &cobra.Command{
	Use:   "restore <checkpoint-id>",
	Short: "Restore the workspace to a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointsRestore,
}

var checkpointsCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Delete redundant checkpoints",
	Long: `Delete checkpoints that are neither phase boundaries nor among the
most recent. The first and last checkpoint of every phase always
survive compaction.`,
	RunE: runCheckpointsCompact,
}

var (
	checkpointsSessionID string
	checkpointsKeep      int
)

func init() {
	rootCmd.AddCommand(checkpointsCmd)
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsRestoreCmd)
	checkpointsCmd.AddCommand(checkpointsCompactCmd)

	checkpointsCmd.PersistentFlags().StringVarP(&checkpointsSessionID, "session", "s", "", "Session ID (default: most recent)")
	checkpointsCompactCmd.Flags().IntVar(&checkpointsKeep, "keep", 0, "Recent checkpoints to retain (default: config checkpoint.compact_keep)")
}

// openManager builds a checkpoint manager over the configured
// workspace, without a running session.
func openManager(cfg *config.Config) (*checkpoint.Manager, string, error) {
	workspace, err := resolveWorkspace(cfg)
	if err != nil {
		return nil, "", err
	}

	store, err := storage.NewFS(workspace)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workspace: %w", err)
	}

	var sc gitops.SourceControl
	if cfg.Checkpoint.UseGit {
		sc = gitops.New(workspace)
	}

	return checkpoint.NewManager(store, sc, event.NewBus(), logging.NopLogger()), workspace, nil
}

// resolveCheckpointSession returns the session to operate on: the
// --session flag when given, otherwise the most recently modified
// session with recorded checkpoints.
func resolveCheckpointSession(workspace string) (string, error) {
	if checkpointsSessionID != "" {
		return checkpointsSessionID, nil
	}

	entries, err := os.ReadDir(filepath.Join(workspace, "checkpoints"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}

	type candidate struct {
		id  string
		mod int64
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{id: e.Name(), mod: info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod > candidates[j].mod })
	return candidates[0].id, nil
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	mgr, workspace, err := openManager(cfg)
	if err != nil {
		return err
	}

	sessionID, err := resolveCheckpointSession(workspace)
	if err != nil {
		return err
	}
	if sessionID == "" {
		fmt.Println("No checkpoints found.")
		return nil
	}

	checkpoints, err := mgr.List(sessionID)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		fmt.Printf("No checkpoints for session %s\n", sessionID)
		return nil
	}

	fmt.Printf("Session: %s\n\n", sessionID)
	for _, cp := range checkpoints {
		fmt.Printf("%s\n", cp.ID)
		fmt.Printf("    Phase: %d\n", cp.Phase)
		fmt.Printf("    Created: %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("    Files: %d\n", len(cp.Files))
		if cp.GitCommit != "" {
			fmt.Printf("    Commit: %s\n", cp.GitCommit)
		}
		fmt.Println()
	}
	return nil
}

func runCheckpointsRestore(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	mgr, workspace, err := openManager(cfg)
	if err != nil {
		return err
	}

	sessionID, err := resolveCheckpointSession(workspace)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return fmt.Errorf("no sessions with checkpoints found")
	}

	res := mgr.Restore(sessionID, args[0])
	if !res.Success {
		return fmt.Errorf("restore failed: %w", res.Err)
	}

	fmt.Println(restoreSummary(res, args[0]))
	return nil
}

func restoreSummary(res checkpoint.RestoreResult, id string) string {
	if res.UsedGitRevert {
		return fmt.Sprintf("Restored %s via git revert", id)
	}
	return fmt.Sprintf("Restored %d file(s) from %s", len(res.FilesRestored), id)
}

func runCheckpointsCompact(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	mgr, workspace, err := openManager(cfg)
	if err != nil {
		return err
	}

	sessionID, err := resolveCheckpointSession(workspace)
	if err != nil {
		return err
	}
	if sessionID == "" {
		fmt.Println("No checkpoints found.")
		return nil
	}

	keep := checkpointsKeep
	if keep <= 0 {
		keep = cfg.Checkpoint.CompactKeep
	}

	deleted, err := mgr.Compact(sessionID, keep)
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	fmt.Printf("Deleted %d checkpoint(s) from session %s\n", deleted, sessionID)
	return nil
}
