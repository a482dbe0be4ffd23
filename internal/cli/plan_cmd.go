package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/plan"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with transform plan files",
	}
	cmd.AddCommand(newPlanValidateCmd())
	return cmd
}

func newPlanValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a plan file and list the steps it registers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			steps, err := p.Steps()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan %s is valid.\n", args[0])
			if p.Index != "" {
				fmt.Fprintf(out, "Index: %s\n", p.Index)
			}
			if p.Snapshot {
				fmt.Fprintln(out, "Snapshot: on")
			}
			fmt.Fprintf(out, "Steps:\n")
			if len(steps) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for i, tr := range steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, tr.Describe())
			}
			return nil
		},
	}
}
