package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-day/autopilot/internal/planfile"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with plan files",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Validate a plan file",
	Long: `Parse a YAML plan file and check its structure: task ids must be
unique, every action must name its target, and every success
criterion must be complete. Nothing is executed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanValidate,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	f, err := planfile.Load(args[0])
	if err != nil {
		return err
	}

	actions := 0
	criteria := 0
	for _, t := range f.Tasks {
		actions += len(t.Actions)
		criteria += len(t.SuccessCriteria)
	}

	fmt.Printf("%s is valid: %d task(s), %d action(s), %d criteria\n",
		args[0], len(f.Tasks), actions, criteria)
	return nil
}
