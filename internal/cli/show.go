package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentsh/mcpscope/internal/inventory"
	"github.com/agentsh/mcpscope/internal/store/jsonl"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var (
		jsonOut bool
		history bool
		limit   int
		path    string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the last snapshot or the scan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			cfg := rt.cfg

			if history {
				sums, err := jsonl.Read(cfg.Output.HistoryPath, cfg.Output.HistoryMaxBackups, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, sums)
				}
				out := cmd.OutOrStdout()
				if len(sums) == 0 {
					fmt.Fprintln(out, "No scan history")
					return nil
				}
				fmt.Fprintln(out, "COLLECTED            SCAN ID                               CONFIGS  PROCS  HIGH  MED  LOW  DRIFT")
				for _, s := range sums {
					drift := ""
					if s.Drift {
						drift = "yes"
					}
					fmt.Fprintf(out, "%-20s %-37s %7d %6d %5d %4d %4d  %s\n",
						time.Unix(s.CollectedAt, 0).UTC().Format("2006-01-02 15:04:05"),
						s.ScanID, s.ConfigsFound, s.StdioProcesses, s.High, s.Medium, s.Low, drift)
				}
				return nil
			}

			if path == "" {
				path = cfg.Output.SnapshotPath
			}
			inv, err := inventory.ReadSnapshot(path)
			if errors.Is(err, inventory.ErrNoSnapshot) {
				return exitErrorf(ExitFailure, "no snapshot at %s; run mcpscope scan first", path)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, inv)
			}
			printInventory(cmd.OutOrStdout(), inv, path, useColor(cmd.OutOrStdout()))
			if inv.SchemaVersion != types.SchemaVersion {
				cmd.PrintErrf("warning: snapshot schema %q\n", inv.SchemaVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&history, "history", false, "Show the scan history instead of the last snapshot")
	cmd.Flags().IntVar(&limit, "limit", 20, "Most recent history entries to show (0 = all)")
	cmd.Flags().StringVar(&path, "path", "", "Snapshot path (defaults to output.snapshot_path)")
	return cmd
}
