package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// truncate truncates s to at most max characters, adding "..." if truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal

// useColor reports whether w is a terminal and NO_COLOR is unset.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiReset  = "\x1b[0m"
)

func severityLabel(s types.Severity, color bool) string {
	label := strings.ToUpper(string(s))
	if !color {
		return label
	}
	switch s {
	case types.SeverityHigh:
		return ansiRed + label + ansiReset
	case types.SeverityMedium:
		return ansiYellow + label + ansiReset
	default:
		return ansiCyan + label + ansiReset
	}
}

// findingSubject is the most specific evidence a finding points at.
func findingSubject(f types.Finding) string {
	switch {
	case f.URLHost != "":
		return f.URLHost + f.URLPath
	case f.Bundle.CmdRedacted != "":
		return f.Bundle.CmdRedacted
	case f.Bundle.Source != nil:
		return f.Bundle.Source.Path
	case len(f.Evidence) > 0:
		return f.Evidence[0]
	}
	return f.Fingerprint
}

func printInventory(w io.Writer, inv *types.Inventory, path string, color bool) {
	fmt.Fprintf(w, "Scan %s on %s (%s %s)\n", inv.ScanID, inv.Meta.Hostname, inv.Meta.OS.Name, inv.Meta.OS.Release)
	if path != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", path)
	}
	cov := inv.Metrics.Coverage
	fmt.Fprintf(w, "Configs: %d  Repos with MCP: %d  Stdio processes: %d  Duration: %dms\n",
		cov.ConfigsFound, cov.ReposWithMCP, cov.StdioProcesses, inv.Meta.ScanDurationMS)
	if hosts := inv.Metrics.ShadowIT.UnsanctionedHosts; len(hosts) > 0 {
		fmt.Fprintf(w, "Unsanctioned hosts: %s\n", strings.Join(hosts, ", "))
	}
	if n := inv.Metrics.ShadowIT.ShadowProcesses; n > 0 {
		fmt.Fprintf(w, "Shadow processes: %d\n", n)
	}
	if d := inv.Metrics.Drift; d != nil && d.Changed {
		fmt.Fprintf(w, "Drift since %s: +%d/-%d configs, +%d/-%d findings\n", d.PreviousScanID,
			len(d.ConfigsAdded), len(d.ConfigsRemoved), len(d.FindingsAdded), len(d.FindingsRemoved))
	}

	if len(inv.Findings) == 0 {
		fmt.Fprintln(w, "No findings")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-6s %-18s %-40s %s\n", "SEV", "TYPE", "SUBJECT", "BOOSTERS")
	for _, f := range inv.Findings {
		// pad before coloring so escape codes don't break alignment
		sev := fmt.Sprintf("%-6s", strings.ToUpper(string(f.Severity)))
		if color {
			sev = strings.Replace(sev, strings.ToUpper(string(f.Severity)), severityLabel(f.Severity, true), 1)
		}
		fmt.Fprintf(w, "%s %-18s %-40s %s\n", sev, f.Type, truncate(findingSubject(f), 40), strings.Join(f.RiskBoosters, ","))
	}
}

func printDrift(w io.Writer, d *types.Drift) {
	if d == nil || !d.Changed {
		fmt.Fprintln(w, "No drift")
		return
	}
	section := func(title, sign string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintln(w, title)
		for _, it := range items {
			fmt.Fprintf(w, "  %s %s\n", sign, it)
		}
	}
	fmt.Fprintf(w, "Drift since %s\n", d.PreviousScanID)
	section("Configs added:", "+", d.ConfigsAdded)
	section("Configs removed:", "-", d.ConfigsRemoved)
	section("Findings added:", "+", d.FindingsAdded)
	section("Findings removed:", "-", d.FindingsRemoved)
}
