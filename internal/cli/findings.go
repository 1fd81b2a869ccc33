package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/internal/store/sqlite"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/spf13/cobra"
)

func newFindingsCmd() *cobra.Command {
	var (
		dbPath     string
		endpointID string
		scanID     string
		severities []string
		findType   string
		host       string
		limit      int
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Query findings stored in the local SQLite aggregator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				rt, err := loadRuntime(cmd)
				if err != nil {
					return err
				}
				dbPath = rt.cfg.Aggregator.SQLite.Path
			}
			if dbPath == "" {
				return fmt.Errorf("no database: set aggregator.sqlite.path or pass --db")
			}

			st, err := sqlite.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			q := store.FindingQuery{
				EndpointID: endpointID,
				ScanID:     scanID,
				Type:       types.FindingType(findType),
				HostLike:   host,
				Limit:      limit,
			}
			for _, s := range severities {
				q.Severities = append(q.Severities, types.Severity(strings.ToLower(s)))
			}
			found, err := st.QueryFindings(cmd.Context(), q)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, found)
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No findings")
				return nil
			}
			fmt.Fprintf(out, "%-20s %-19s %-6s %-18s %s\n", "COLLECTED", "ENDPOINT", "SEV", "TYPE", "SUBJECT")
			for _, f := range found {
				fmt.Fprintf(out, "%-20s %-19s %-6s %-18s %s\n",
					time.Unix(f.CollectedAt, 0).UTC().Format("2006-01-02 15:04:05"),
					truncate(f.EndpointID, 19),
					strings.ToUpper(string(f.Finding.Severity)),
					f.Finding.Type,
					truncate(findingSubject(f.Finding), 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to aggregator.sqlite.path)")
	cmd.Flags().StringVar(&endpointID, "endpoint", "", "Filter by endpoint id")
	cmd.Flags().StringVar(&scanID, "scan", "", "Filter by scan id")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "Filter by severity (high, med, low); repeatable")
	cmd.Flags().StringVar(&findType, "type", "", "Filter by finding type")
	cmd.Flags().StringVar(&host, "host", "", "Filter by URL host (SQL LIKE pattern)")
	cmd.Flags().IntVar(&limit, "limit", 200, "Maximum rows")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}
