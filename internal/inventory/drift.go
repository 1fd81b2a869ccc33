package inventory

import (
	"sort"

	"github.com/agentsh/mcpscope/pkg/types"
)

// ComputeDrift compares cur with prev. It returns nil when there is no
// previous snapshot.
func ComputeDrift(prev, cur *types.Inventory) *types.Drift {
	if prev == nil || cur == nil {
		return nil
	}
	d := &types.Drift{PreviousScanID: prev.ScanID}
	d.ConfigsAdded, d.ConfigsRemoved = diffKeys(configKeys(prev), configKeys(cur))
	d.FindingsAdded, d.FindingsRemoved = diffKeys(findingKeys(prev), findingKeys(cur))
	d.Changed = len(d.ConfigsAdded)+len(d.ConfigsRemoved)+len(d.FindingsAdded)+len(d.FindingsRemoved) > 0
	return d
}

func configKeys(inv *types.Inventory) map[string]bool {
	out := make(map[string]bool, len(inv.Configs))
	for _, c := range inv.Configs {
		out[c.Path] = true
	}
	return out
}

func findingKeys(inv *types.Inventory) map[string]bool {
	out := make(map[string]bool, len(inv.Findings))
	for _, f := range inv.Findings {
		out[f.Key()] = true
	}
	return out
}

func diffKeys(prev, cur map[string]bool) (added, removed []string) {
	added, removed = []string{}, []string{}
	for k := range cur {
		if !prev[k] {
			added = append(added, k)
		}
	}
	for k := range prev {
		if !cur[k] {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
