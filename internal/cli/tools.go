package cli

import (
	"fmt"

	"github.com/agentsh/mcpscope/internal/capability"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the disabled MCP tools list",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Disabled tools file (defaults to tools.disabled_file)")

	disabled := func(cmd *cobra.Command) (*capability.DisabledTools, error) {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return nil, err
		}
		path := file
		if path == "" {
			path = rt.cfg.Tools.DisabledFile
		}
		return capability.NewDisabledTools(capability.FileLoader(path),
			capability.WithTTL(rt.cfg.ToolsCacheTTL())), nil
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List disabled tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := disabled(cmd)
			if err != nil {
				return err
			}
			keys, err := d.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, keys)
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No disabled tools")
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(out, k)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")

	var server string
	check := &cobra.Command{
		Use:   "check TOOL",
		Short: "Report whether a tool is disabled (exit 3 when it is)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := disabled(cmd)
			if err != nil {
				return err
			}
			off, err := d.IsDisabled(cmd.Context(), server, args[0])
			if err != nil {
				return err
			}
			key := capability.Key(server, args[0])
			if off {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: disabled\n", key)
				return &ExitError{code: ExitToolDisabled}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled\n", key)
			return nil
		},
	}
	check.Flags().StringVar(&server, "server", "", "MCP server name the tool belongs to")

	var (
		analyzeServer string
		analyzeJSON   bool
	)
	analyze := &cobra.Command{
		Use:   "analyze TOOL...",
		Short: "Classify tools as reading or writing data from their names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := disabled(cmd)
			if err != nil {
				return err
			}
			reqs := make([]capability.Request, 0, len(args))
			for _, tool := range args {
				reqs = append(reqs, capability.Request{ToolName: tool, ServerName: analyzeServer})
			}
			outcomes, err := capability.AnalyzeAll(cmd.Context(), capability.PrefixAnalyzer{}, d, reqs)
			if err != nil {
				return err
			}
			if analyzeJSON {
				return printJSON(cmd, outcomes)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-32s %-5s %-5s %s\n", "TOOL", "READ", "WRITE", "NOTE")
			for _, o := range outcomes {
				name := capability.Key(o.Request.ServerName, o.Request.ToolName)
				if o.Disabled {
					fmt.Fprintf(out, "%-32s %-5s %-5s %s\n", truncate(name, 32), "-", "-", "disabled")
					continue
				}
				fmt.Fprintf(out, "%-32s %-5t %-5t %s\n", truncate(name, 32), o.Result.CanRead, o.Result.CanWrite,
					capability.Categorize(o.Request.ToolName))
			}
			return nil
		},
	}
	analyze.Flags().StringVar(&analyzeServer, "server", "", "MCP server name the tools belong to")
	analyze.Flags().BoolVar(&analyzeJSON, "json", false, "Print JSON")

	cmd.AddCommand(list, check, analyze)
	return cmd
}
