package fingerprint

import "github.com/agentsh/mcpscope/pkg/types"

// DedupServers keeps the first declaration per fingerprint, assigning
// fingerprints to declarations that lack one.
func DedupServers(list []types.ServerDeclaration) []types.ServerDeclaration {
	seen := make(map[string]bool, len(list))
	out := make([]types.ServerDeclaration, 0, len(list))
	for _, s := range list {
		if s.Fingerprint == "" {
			s.Fingerprint = Server(s)
		}
		if seen[s.Fingerprint] {
			continue
		}
		seen[s.Fingerprint] = true
		out = append(out, s)
	}
	return out
}

// DedupProcesses collapses observations sharing a fingerprint into the first
// one, widening its FirstSeen/LastSeen window to cover all of them. Output
// keeps first-occurrence order.
func DedupProcesses(list []types.ProcessRecord) []types.ProcessRecord {
	index := make(map[string]int, len(list))
	out := make([]types.ProcessRecord, 0, len(list))
	for _, p := range list {
		if p.Fingerprint == "" {
			p.Fingerprint = processFingerprint(p)
		}
		if i, ok := index[p.Fingerprint]; ok {
			widen(&out[i], p.FirstSeen, p.LastSeen)
			continue
		}
		index[p.Fingerprint] = len(out)
		out = append(out, p)
	}
	return out
}

// MergePrior widens FirstSeen of current records using earlier observations
// of the same fingerprint. Prior records not observed now are dropped.
func MergePrior(current, prior []types.ProcessRecord) []types.ProcessRecord {
	if len(prior) == 0 {
		return current
	}
	earliest := make(map[string]int64, len(prior))
	for _, p := range prior {
		if p.Fingerprint == "" || p.FirstSeen == 0 {
			continue
		}
		if cur, ok := earliest[p.Fingerprint]; !ok || p.FirstSeen < cur {
			earliest[p.Fingerprint] = p.FirstSeen
		}
	}
	out := make([]types.ProcessRecord, len(current))
	copy(out, current)
	for i := range out {
		if first, ok := earliest[out[i].Fingerprint]; ok && first < out[i].FirstSeen {
			out[i].FirstSeen = first
		}
	}
	return out
}

func widen(p *types.ProcessRecord, first, last int64) {
	if first != 0 && (p.FirstSeen == 0 || first < p.FirstSeen) {
		p.FirstSeen = first
	}
	if last > p.LastSeen {
		p.LastSeen = last
	}
}

func processFingerprint(p types.ProcessRecord) string {
	if p.Cmd != "" {
		return Process(p.Cmd)
	}
	return Process(p.CmdRedacted)
}
