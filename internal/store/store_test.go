package store

import (
	"testing"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/stretchr/testify/assert"
)

func sampleInventory() *types.Inventory {
	return &types.Inventory{
		SchemaVersion:    types.SchemaVersion,
		CollectorVersion: "1.2.3",
		ScanID:           "scan-1",
		Meta: types.Meta{
			Hostname:    "dev-box",
			OS:          types.OSInfo{Name: "linux", Release: "6.1"},
			User:        types.UserContext{Username: "alice"},
			CollectedAt: 1700000000,
		},
		Findings: []types.Finding{
			{Severity: types.SeverityHigh},
			{Severity: types.SeverityHigh},
			{Severity: types.SeverityMedium},
		},
		Metrics: types.CollectorMetrics{
			Coverage: types.Coverage{ConfigsFound: 2, ReposWithMCP: 1, StdioProcesses: 1},
			ShadowIT: types.ShadowIT{UnsanctionedHosts: []string{"b.example", "a.example"}, ShadowProcesses: 1},
			Drift:    &types.Drift{Changed: true},
		},
	}
}

func TestEndpointFor(t *testing.T) {
	inv := sampleInventory()
	ep := EndpointFor("", inv)
	assert.Equal(t, "dev-box", ep.ID)
	assert.Equal(t, "linux", ep.OS)
	assert.Equal(t, "6.1", ep.OSRelease)
	assert.Equal(t, "alice", ep.Username)
	assert.Equal(t, "1.2.3", ep.CollectorVersion)
	assert.Equal(t, int64(1700000000), ep.LastSeen)

	assert.Equal(t, "laptop-42", EndpointFor("laptop-42", inv).ID)
}

func TestSummarize(t *testing.T) {
	inv := sampleInventory()
	s := Summarize(inv)
	assert.Equal(t, "scan-1", s.ScanID)
	assert.Equal(t, 3, s.Findings)
	assert.Equal(t, 2, s.High)
	assert.Equal(t, 1, s.Medium)
	assert.Equal(t, 0, s.Low)
	assert.Equal(t, []string{"a.example", "b.example"}, s.UnsanctionedHosts)
	assert.True(t, s.Drift)
	assert.Equal(t, []string{"b.example", "a.example"}, inv.Metrics.ShadowIT.UnsanctionedHosts, "input must not be mutated")
}
