package inventory

import (
	"sort"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/pkg/types"
)

// ReposWithMCP counts distinct owner/name repositories among configs that
// declare at least one server.
func ReposWithMCP(configs []types.ConfigRecord) int {
	seen := map[string]bool{}
	for _, c := range configs {
		if len(c.Servers) == 0 || c.Repo == nil || c.Repo.Name == "" {
			continue
		}
		seen[c.Repo.Owner+"/"+c.Repo.Name] = true
	}
	return len(seen)
}

// UnsanctionedHosts returns the sorted, unique hosts of findings tagged
// unsanctioned_host.
func UnsanctionedHosts(findings []types.Finding) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, f := range findings {
		if f.URLHost == "" || !f.HasBooster(types.BoosterUnsanctionedHost) || seen[f.URLHost] {
			continue
		}
		seen[f.URLHost] = true
		out = append(out, f.URLHost)
	}
	sort.Strings(out)
	return out
}

// ShadowProcesses counts running MCP processes that no stdio declaration
// in configs would launch.
func ShadowProcesses(configs []types.ConfigRecord, processes []types.ProcessRecord) int {
	declared := map[string]bool{}
	for _, c := range configs {
		for _, s := range c.Servers {
			if s.Transport == types.TransportStdio && s.Command != "" {
				declared[fingerprint.Launch(s)] = true
			}
		}
	}
	n := 0
	for _, p := range processes {
		if !declared[p.Fingerprint] {
			n++
		}
	}
	return n
}
