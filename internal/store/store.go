// Package store holds the collaborators a finished scan is handed to: the
// Aggregator implementations that receive snapshots and the local scan
// history.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/agentsh/mcpscope/pkg/types"
)

// Endpoint identifies the host a snapshot came from.
type Endpoint struct {
	ID               string `json:"id"`
	Hostname         string `json:"hostname"`
	OS               string `json:"os"`
	OSRelease        string `json:"os_release,omitempty"`
	Username         string `json:"username,omitempty"`
	CollectorVersion string `json:"collector_version"`
	LastSeen         int64  `json:"last_seen"`
}

// Aggregator receives snapshots from collectors. RegisterEndpoint is
// idempotent by endpoint id; registering again refreshes the metadata.
type Aggregator interface {
	RegisterEndpoint(ctx context.Context, ep Endpoint) error
	StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error
	Close() error
}

// EndpointFor describes the host that produced inv. An empty id falls back
// to the hostname.
func EndpointFor(id string, inv *types.Inventory) Endpoint {
	if id == "" {
		id = inv.Meta.Hostname
	}
	return Endpoint{
		ID:               id,
		Hostname:         inv.Meta.Hostname,
		OS:               inv.Meta.OS.Name,
		OSRelease:        inv.Meta.OS.Release,
		Username:         inv.Meta.User.Username,
		CollectorVersion: inv.CollectorVersion,
		LastSeen:         inv.Meta.CollectedAt,
	}
}

// Summary is the one-line record kept per scan in the history file.
type Summary struct {
	ScanID            string   `json:"scan_id"`
	CollectedAt       int64    `json:"collected_at"`
	Hostname          string   `json:"hostname"`
	ConfigsFound      int      `json:"configs_found"`
	ReposWithMCP      int      `json:"repos_with_mcp"`
	StdioProcesses    int      `json:"stdio_processes"`
	Findings          int      `json:"findings"`
	High              int      `json:"high"`
	Medium            int      `json:"med"`
	Low               int      `json:"low"`
	UnsanctionedHosts []string `json:"unsanctioned_hosts"`
	ShadowProcesses   int      `json:"shadow_processes"`
	ScanDurationMS    int64    `json:"scan_duration_ms"`
	Drift             bool     `json:"drift"`
}

// Summarize condenses inv into a history record.
func Summarize(inv *types.Inventory) Summary {
	s := Summary{
		ScanID:            inv.ScanID,
		CollectedAt:       inv.Meta.CollectedAt,
		Hostname:          inv.Meta.Hostname,
		ConfigsFound:      inv.Metrics.Coverage.ConfigsFound,
		ReposWithMCP:      inv.Metrics.Coverage.ReposWithMCP,
		StdioProcesses:    inv.Metrics.Coverage.StdioProcesses,
		Findings:          len(inv.Findings),
		UnsanctionedHosts: append([]string{}, inv.Metrics.ShadowIT.UnsanctionedHosts...),
		ShadowProcesses:   inv.Metrics.ShadowIT.ShadowProcesses,
		ScanDurationMS:    inv.Metrics.Performance.ScanDurationMS,
		Drift:             inv.Metrics.Drift != nil && inv.Metrics.Drift.Changed,
	}
	sort.Strings(s.UnsanctionedHosts)
	for _, f := range inv.Findings {
		switch f.Severity {
		case types.SeverityHigh:
			s.High++
		case types.SeverityMedium:
			s.Medium++
		case types.SeverityLow:
			s.Low++
		}
	}
	return s
}

var (
	// ErrUnknownEndpoint is returned when a snapshot names an endpoint that
	// was never registered.
	ErrUnknownEndpoint = errors.New("endpoint not registered")
	// ErrNotFound is returned by lookups with no result.
	ErrNotFound = errors.New("not found")
)

// FindingQuery filters stored findings.
type FindingQuery struct {
	EndpointID string
	ScanID     string
	Severities []types.Severity
	Type       types.FindingType
	HostLike   string
	Limit      int
}

// StoredFinding is a finding row as kept by a queryable aggregator.
type StoredFinding struct {
	ScanID      string        `json:"scan_id"`
	EndpointID  string        `json:"endpoint_id"`
	CollectedAt int64         `json:"collected_at"`
	Finding     types.Finding `json:"finding"`
}
