package types

// SchemaVersion is the snapshot schema understood by the dashboard and exporters.
const SchemaVersion = "2.0"

// Transport is how a client talks to an MCP server.
type Transport string

// Transports.
const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// ServerDeclaration is one MCP server entry from a config file.
type ServerDeclaration struct {
	Name        string         `json:"name"`
	Transport   Transport      `json:"transport"`
	Command     string         `json:"command,omitempty"`
	Args        []string       `json:"args"`
	URL         string         `json:"url,omitempty"`
	Fingerprint string         `json:"fingerprint"`
	Config      map[string]any `json:"config,omitempty"`

	// Raw is the declaration as parsed from disk. It may contain
	// credentials and is never serialized.
	Raw map[string]any `json:"-"`
}

// RepoContext identifies the git repository a config file lives in.
type RepoContext struct {
	Name      string `json:"name,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Branch    string `json:"branch,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// UserContext identifies the person running the scan.
type UserContext struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// ConfigRecord is a discovered config file and the servers it declares.
type ConfigRecord struct {
	Path    string              `json:"path"`
	MTime   int64               `json:"mtime"`
	SHA256  string              `json:"sha256"`
	Servers []ServerDeclaration `json:"servers"`
	Repo    *RepoContext        `json:"repo,omitempty"`
}

// ProcessRecord is a running MCP server spawned under an IDE or agent.
type ProcessRecord struct {
	PID         int    `json:"pid"`
	PPID        int    `json:"ppid"`
	ParentName  string `json:"parent_name"`
	CmdRedacted string `json:"cmd_redacted"`
	FirstSeen   int64  `json:"first_seen"`
	LastSeen    int64  `json:"last_seen"`
	Fingerprint string `json:"fingerprint"`

	// Cmd is the raw command line; only the redacted form is persisted.
	Cmd string `json:"-"`
}

// ProcessInventory holds the process discovery results.
type ProcessInventory struct {
	Supported bool            `json:"supported"`
	Items     []ProcessRecord `json:"items"`
}

// OSInfo names the host operating system.
type OSInfo struct {
	Name    string `json:"name"`
	Release string `json:"release,omitempty"`
}

// Meta describes the host and timing of a scan.
type Meta struct {
	Hostname       string      `json:"hostname"`
	OS             OSInfo      `json:"os"`
	User           UserContext `json:"user"`
	CollectedAt    int64       `json:"collected_at"`
	ScanDurationMS int64       `json:"scan_duration_ms"`
}

// Coverage counts what discovery found.
type Coverage struct {
	ConfigsFound   int `json:"configs_found"`
	ReposWithMCP   int `json:"repos_with_mcp"`
	StdioProcesses int `json:"stdio_processes"`
}

// ShadowIT summarizes MCP usage outside sanctioned hosts and configs.
type ShadowIT struct {
	UnsanctionedHosts []string `json:"unsanctioned_hosts"`
	ShadowProcesses   int      `json:"shadow_processes"`
}

// Performance holds scan timings in milliseconds.
type Performance struct {
	ScanDurationMS        int64 `json:"scan_duration_ms"`
	TimeToFirstEvidenceMS int64 `json:"time_to_first_evidence_ms"`
}

// Drift describes how this scan differs from the snapshot it replaced.
type Drift struct {
	PreviousScanID  string   `json:"previous_scan_id,omitempty"`
	ConfigsAdded    []string `json:"configs_added"`
	ConfigsRemoved  []string `json:"configs_removed"`
	FindingsAdded   []string `json:"findings_added"`
	FindingsRemoved []string `json:"findings_removed"`
	Changed         bool     `json:"changed"`
}

// CollectorMetrics groups the per-scan metrics stored in the snapshot.
type CollectorMetrics struct {
	Coverage    Coverage    `json:"coverage"`
	ShadowIT    ShadowIT    `json:"shadow_it"`
	Performance Performance `json:"performance"`
	Drift       *Drift      `json:"drift,omitempty"`
}

// Inventory is the snapshot document written by each scan.
type Inventory struct {
	SchemaVersion    string           `json:"schema_version"`
	CollectorVersion string           `json:"collector_version"`
	ScanID           string           `json:"scan_id"`
	Meta             Meta             `json:"meta"`
	Configs          []ConfigRecord   `json:"configs"`
	Processes        ProcessInventory `json:"processes"`
	Findings         []Finding        `json:"findings"`
	Metrics          CollectorMetrics `json:"metrics"`
}
