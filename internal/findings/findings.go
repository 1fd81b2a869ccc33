// Package findings turns discovered configs and processes into typed
// security findings annotated with risk boosters.
package findings

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/internal/redact"
	"github.com/agentsh/mcpscope/pkg/types"
)

// TrustedHosts never receive the unsanctioned_host booster.
var TrustedHosts = map[string]bool{
	"localhost":             true,
	"127.0.0.1":             true,
	"::1":                   true,
	"api.githubcopilot.com": true,
}

// Markers in a serialized http declaration that indicate credentials.
var authMarkers = []string{"authorization", "headers", "token"}

var drivePathRe = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// Generate returns one finding per qualifying process and server
// declaration: processes first, then configs in discovery order. now
// stamps config-based evidence. The inputs are not modified.
func Generate(configs []types.ConfigRecord, processes []types.ProcessRecord, now time.Time) []types.Finding {
	out := []types.Finding{}
	for _, p := range processes {
		out = append(out, processFinding(p))
	}
	ts := now.Unix()
	for _, cfg := range configs {
		for _, s := range cfg.Servers {
			switch s.Transport {
			case types.TransportStdio:
				if strings.TrimSpace(s.Command) == "" {
					continue
				}
				out = append(out, stdioFinding(cfg, s, ts))
			case types.TransportHTTP:
				if f, ok := httpFinding(cfg, s, ts); ok {
					out = append(out, f)
				}
			}
		}
	}
	return out
}

func processFinding(p types.ProcessRecord) types.Finding {
	cmd := p.Cmd
	if cmd == "" {
		cmd = p.CmdRedacted
	}
	lower := strings.ToLower(cmd)

	var boosters []string
	if strings.Contains(lower, "shell") {
		boosters = append(boosters, types.BoosterShellCapability)
	}
	if strings.Contains(lower, "filesystem") || strings.Contains(lower, "fs") {
		boosters = append(boosters, types.BoosterFilesystemAccess)
	}

	fp := p.Fingerprint
	if fp == "" {
		fp = fingerprint.Process(cmd)
	}
	return types.Finding{
		Severity: types.SeverityHigh,
		Type:     types.FindingStdioProcess,
		Evidence: []string{
			fmt.Sprintf("pid %d (ppid %d) running under %s", p.PID, p.PPID, p.ParentName),
			"cmd: " + p.CmdRedacted,
		},
		Fingerprint: fp,
		Bundle: types.EvidenceBundle{
			ParentIDE:   p.ParentName,
			CmdRedacted: p.CmdRedacted,
			FirstSeen:   p.FirstSeen,
			LastSeen:    p.LastSeen,
		},
		RiskBoosters: sortedSet(boosters),
	}
}

func stdioFinding(cfg types.ConfigRecord, s types.ServerDeclaration, ts int64) types.Finding {
	boosters := []string{types.BoosterStdioWithCommand}
	if touchesFilesystem(s) {
		boosters = append(boosters, types.BoosterFilesystemAccess)
	}
	cmdline := redact.Redact(strings.TrimSpace(strings.Join(append([]string{s.Command}, s.Args...), " ")))

	return types.Finding{
		Severity: types.SeverityHigh,
		Type:     types.FindingStdioConfig,
		Evidence: []string{
			fmt.Sprintf("server %q declared in %s", s.Name, cfg.Path),
			"cmd: " + cmdline,
		},
		OwnerHint:   repoOwner(cfg.Repo),
		Fingerprint: serverFingerprint(s),
		Bundle: types.EvidenceBundle{
			Source:      &types.SourceEvidence{Path: cfg.Path, SHA256: cfg.SHA256},
			CmdRedacted: cmdline,
			FirstSeen:   ts,
			LastSeen:    ts,
			Repo:        cfg.Repo,
		},
		RiskBoosters: sortedSet(boosters),
	}
}

func httpFinding(cfg types.ConfigRecord, s types.ServerDeclaration, ts int64) (types.Finding, bool) {
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil || u.Hostname() == "" {
		return types.Finding{}, false
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return types.Finding{}, false
	}
	host := strings.ToLower(u.Hostname())
	normalized := fingerprint.NormalizeURL(s.URL)

	var boosters []string
	if hasAuthMarkers(s, normalized) {
		boosters = append(boosters, types.BoosterHTTPWithAuth)
	}
	if !TrustedHosts[host] {
		boosters = append(boosters, types.BoosterUnsanctionedHost)
	}
	severity := types.SeverityMedium
	if len(boosters) > 0 {
		severity = types.SeverityHigh
	}

	owner := repoOwner(cfg.Repo)
	if owner == "" {
		owner = secondLevelLabel(host)
	}
	return types.Finding{
		Severity: severity,
		Type:     types.FindingHTTPConfig,
		Evidence: []string{
			fmt.Sprintf("server %q declared in %s", s.Name, cfg.Path),
			"url: " + normalized,
		},
		URLHost:     host,
		URLPath:     u.Path,
		OwnerHint:   owner,
		Fingerprint: serverFingerprint(s),
		Bundle: types.EvidenceBundle{
			Source:      &types.SourceEvidence{Path: cfg.Path, SHA256: cfg.SHA256},
			CmdRedacted: normalized,
			FirstSeen:   ts,
			LastSeen:    ts,
			Repo:        cfg.Repo,
		},
		RiskBoosters: sortedSet(boosters),
	}, true
}

// hasAuthMarkers serializes the declaration with its URL reduced to the
// normalized form, so query parameters never count as auth markers.
func hasAuthMarkers(s types.ServerDeclaration, normalizedURL string) bool {
	decl := make(map[string]any, len(s.Raw)+3)
	for k, v := range s.Raw {
		decl[k] = v
	}
	if len(decl) == 0 {
		decl["name"] = s.Name
		decl["transport"] = string(s.Transport)
	}
	for _, k := range []string{"url", "serverUrl", "httpUrl"} {
		if _, ok := decl[k]; ok {
			decl[k] = normalizedURL
		}
	}
	if _, ok := decl["url"]; !ok {
		decl["url"] = normalizedURL
	}
	data, err := json.Marshal(decl)
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(data))
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func touchesFilesystem(s types.ServerDeclaration) bool {
	for _, v := range append([]string{s.Command}, s.Args...) {
		if isPathLike(v) || strings.Contains(strings.ToLower(v), "filesystem") {
			return true
		}
	}
	return false
}

func isPathLike(v string) bool {
	v = strings.TrimSpace(v)
	for _, prefix := range []string{"/", "~", "./", "../", `.\`, `..\`} {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return drivePathRe.MatchString(v)
}

func serverFingerprint(s types.ServerDeclaration) string {
	if s.Fingerprint != "" {
		return s.Fingerprint
	}
	return fingerprint.Server(s)
}

func repoOwner(rc *types.RepoContext) string {
	if rc == nil {
		return ""
	}
	return rc.Owner
}

// secondLevelLabel returns "example" for "api.example.com". IP literals
// have no owner.
func secondLevelLabel(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return labels[0]
	}
	return labels[len(labels)-2]
}

func sortedSet(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
