// Package types defines the snapshot document produced by a scan.
package types

// Severity ranks a finding.
type Severity string

// Severities, highest first.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "med"
	SeverityLow    Severity = "low"
)

// FindingType names the kind of evidence behind a finding.
type FindingType string

// Finding types.
const (
	FindingStdioProcess FindingType = "mcp_stdio_process"
	FindingStdioConfig  FindingType = "mcp_stdio_config"
	FindingHTTPConfig   FindingType = "mcp_http_config"
)

// Risk booster tags. The names are part of the snapshot contract.
const (
	BoosterShellCapability  = "shell_capability"
	BoosterFilesystemAccess = "filesystem_access"
	BoosterStdioWithCommand = "stdio_with_command"
	BoosterHTTPWithAuth     = "http_with_auth"
	BoosterUnsanctionedHost = "unsanctioned_host"
)

// SourceEvidence points at the config file a finding came from.
type SourceEvidence struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// EvidenceBundle carries the context needed to act on a finding.
type EvidenceBundle struct {
	Source      *SourceEvidence `json:"source,omitempty"`
	ParentIDE   string          `json:"parent_ide,omitempty"`
	CmdRedacted string          `json:"cmd_redacted,omitempty"`
	FirstSeen   int64           `json:"first_seen"`
	LastSeen    int64           `json:"last_seen"`
	Repo        *RepoContext    `json:"repo,omitempty"`
}

// Finding is one MCP usage observation with its severity and evidence.
type Finding struct {
	Severity     Severity       `json:"severity"`
	Type         FindingType    `json:"type"`
	Evidence     []string       `json:"evidence"`
	URLHost      string         `json:"url_host,omitempty"`
	URLPath      string         `json:"url_path,omitempty"`
	OwnerHint    string         `json:"owner_hint,omitempty"`
	Fingerprint  string         `json:"fingerprint"`
	Bundle       EvidenceBundle `json:"evidence_bundle"`
	RiskBoosters []string       `json:"risk_boosters"`
}

// Key identifies a finding across scans.
func (f Finding) Key() string {
	return f.Fingerprint + ":" + string(f.Type)
}

// HasBooster reports whether the finding carries the given risk booster.
func (f Finding) HasBooster(tag string) bool {
	for _, b := range f.RiskBoosters {
		if b == tag {
			return true
		}
	}
	return false
}
