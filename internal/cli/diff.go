package cli

import (
	"fmt"

	"github.com/agentsh/mcpscope/internal/inventory"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var (
		jsonOut     bool
		failOnDrift bool
	)
	cmd := &cobra.Command{
		Use:   "diff OLD [NEW]",
		Short: "Compare two snapshots (NEW defaults to the current snapshot)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newPath := ""
			if len(args) == 2 {
				newPath = args[1]
			} else {
				rt, err := loadRuntime(cmd)
				if err != nil {
					return err
				}
				newPath = rt.cfg.Output.SnapshotPath
			}

			prev, err := inventory.ReadSnapshot(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			cur, err := inventory.ReadSnapshot(newPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", newPath, err)
			}

			d := inventory.ComputeDrift(prev, cur)
			if jsonOut {
				if err := printJSON(cmd, d); err != nil {
					return err
				}
			} else {
				printDrift(cmd.OutOrStdout(), d)
			}
			if failOnDrift && d.Changed {
				return &ExitError{code: ExitDrift}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the drift as JSON")
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit with status 2 when the snapshots differ")
	return cmd
}

