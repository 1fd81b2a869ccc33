package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/internal/metrics"
	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConfigs []types.ConfigRecord

func (s staticConfigs) Discover(context.Context) []types.ConfigRecord { return s }

type staticProcesses []types.ProcessRecord

func (s staticProcesses) Discover(context.Context) []types.ProcessRecord { return s }

type staticUser types.UserContext

func (u staticUser) User(context.Context) types.UserContext { return types.UserContext(u) }

type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type memHistory struct{ got []store.Summary }

func (h *memHistory) Append(_ context.Context, s store.Summary) error {
	h.got = append(h.got, s)
	return nil
}

type fakeAggregator struct {
	endpoints []store.Endpoint
	stored    []string
	err       error
}

func (a *fakeAggregator) RegisterEndpoint(_ context.Context, ep store.Endpoint) error {
	a.endpoints = append(a.endpoints, ep)
	return a.err
}

func (a *fakeAggregator) StoreSnapshot(_ context.Context, id string, inv *types.Inventory) error {
	a.stored = append(a.stored, id+"/"+inv.ScanID)
	return nil
}

func (a *fakeAggregator) Close() error { return nil }

func fixedHost(context.Context) (string, types.OSInfo) {
	return "dev-box", types.OSInfo{Name: "linux", Release: "6.1"}
}

func newTestCollector(t *testing.T, opts ...Option) (*Collector, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "inventory.json")
	ids := 0
	base := []Option{
		WithVersion("1.0.0"),
		WithHost(fixedHost),
		WithSnapshotPath(path),
		WithClock((&stepClock{t: time.Unix(1700000000, 0), step: 10 * time.Millisecond}).Now),
		WithIDGenerator(func() string { ids++; return "scan-" + string(rune('0'+ids)) }),
	}
	return New(append(base, opts...)...), path
}

func TestRun_EmptyHost(t *testing.T) {
	c, path := newTestCollector(t, WithConfigs(staticConfigs{}), WithProcesses(staticProcesses{}))
	inv, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2.0", inv.SchemaVersion)
	assert.Equal(t, "1.0.0", inv.CollectorVersion)
	assert.Equal(t, "scan-1", inv.ScanID)
	assert.Empty(t, inv.Configs)
	assert.True(t, inv.Processes.Supported)
	assert.Empty(t, inv.Processes.Items)
	assert.Empty(t, inv.Findings)
	assert.Equal(t, 0, inv.Metrics.Coverage.ConfigsFound)
	assert.Equal(t, int64(0), inv.Metrics.Performance.TimeToFirstEvidenceMS)
	assert.Empty(t, inv.Metrics.ShadowIT.UnsanctionedHosts)
	assert.Nil(t, inv.Metrics.Drift)
	assert.Equal(t, "dev-box", inv.Meta.Hostname)
	assert.Equal(t, int64(1700000000), inv.Meta.CollectedAt)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2.0", doc["schema_version"])
	assert.Equal(t, []any{}, doc["configs"])
	assert.Equal(t, []any{}, doc["findings"])
	assert.Equal(t, map[string]any{"supported": true, "items": []any{}}, doc["processes"])

	if os.PathSeparator == '/' {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}
}

func TestRun_FullPipeline(t *testing.T) {
	repo := &types.RepoContext{Owner: "acme", Name: "api"}
	stdio := types.ServerDeclaration{Name: "fs", Transport: types.TransportStdio, Command: "npx", Args: []string{"-y", "@mcp/server-filesystem", "/data"}}
	remote := types.ServerDeclaration{Name: "remote", Transport: types.TransportHTTP, URL: "https://mcp.vendor.io/mcp"}
	configs := staticConfigs{
		{Path: "/w/.vscode/mcp.json", SHA256: "a", Servers: []types.ServerDeclaration{stdio}, Repo: repo},
		{Path: "/w/.cursor/mcp.json", SHA256: "b", Servers: []types.ServerDeclaration{remote}, Repo: repo},
	}
	declared := "npx -y @mcp/server-filesystem /data"
	shadow := "uvx mcp-server-fetch"
	procs := staticProcesses{
		{PID: 10, ParentName: "Cursor", Cmd: declared, CmdRedacted: declared, FirstSeen: 1700000000, LastSeen: 1700000003, Fingerprint: fingerprint.Process(declared)},
		{PID: 11, ParentName: "Cursor", Cmd: shadow, CmdRedacted: shadow, FirstSeen: 1700000000, LastSeen: 1700000003, Fingerprint: fingerprint.Process(shadow)},
	}
	history := &memHistory{}
	agg := &fakeAggregator{}
	mc := metrics.New()
	metricsPath := filepath.Join(t.TempDir(), "mcpscope.prom")

	c, _ := newTestCollector(t,
		WithConfigs(configs),
		WithProcesses(procs),
		WithUsers(staticUser{Username: "alice"}),
		WithHistory(history),
		WithAggregator(agg, ""),
		WithMetrics(mc, metricsPath),
		WithTablesVersion("2025.03"),
	)
	inv, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alice", inv.Meta.User.Username)
	assert.Equal(t, 2, inv.Metrics.Coverage.ConfigsFound)
	assert.Equal(t, 1, inv.Metrics.Coverage.ReposWithMCP)
	assert.Equal(t, 2, inv.Metrics.Coverage.StdioProcesses)
	assert.Equal(t, []string{"mcp.vendor.io"}, inv.Metrics.ShadowIT.UnsanctionedHosts)
	assert.Equal(t, 1, inv.Metrics.ShadowIT.ShadowProcesses)
	assert.Len(t, inv.Findings, 4)
	assert.Greater(t, inv.Metrics.Performance.TimeToFirstEvidenceMS, int64(0))
	assert.LessOrEqual(t, inv.Metrics.Performance.TimeToFirstEvidenceMS, inv.Metrics.Performance.ScanDurationMS)

	require.Len(t, history.got, 1)
	assert.Equal(t, inv.ScanID, history.got[0].ScanID)
	require.Len(t, agg.endpoints, 1)
	assert.Equal(t, "dev-box", agg.endpoints[0].ID)
	assert.Equal(t, []string{"dev-box/" + inv.ScanID}, agg.stored)
	_, err = os.Stat(metricsPath)
	assert.NoError(t, err)
}

func TestRun_SecondScanMergesAndDrifts(t *testing.T) {
	cmd := "uvx mcp-server-git"
	fp := fingerprint.Process(cmd)
	first := staticProcesses{{PID: 5, Cmd: cmd, CmdRedacted: cmd, FirstSeen: 100, LastSeen: 103, Fingerprint: fp}}

	path := filepath.Join(t.TempDir(), "inventory.json")
	c1 := New(WithHost(fixedHost), WithSnapshotPath(path), WithProcesses(first), WithIDGenerator(func() string { return "one" }))
	_, err := c1.Run(context.Background())
	require.NoError(t, err)

	second := staticProcesses{{PID: 6, Cmd: cmd, CmdRedacted: cmd, FirstSeen: 500, LastSeen: 503, Fingerprint: fp}}
	cfg := staticConfigs{{Path: "/new/mcp.json", Servers: []types.ServerDeclaration{{Name: "x", Transport: types.TransportHTTP, URL: "https://mcp.other.dev"}}}}
	c2 := New(WithHost(fixedHost), WithSnapshotPath(path), WithProcesses(second), WithConfigs(cfg), WithIDGenerator(func() string { return "two" }))
	inv, err := c2.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, inv.Processes.Items, 1)
	assert.Equal(t, int64(100), inv.Processes.Items[0].FirstSeen)
	assert.Equal(t, int64(503), inv.Processes.Items[0].LastSeen)

	require.NotNil(t, inv.Metrics.Drift)
	assert.Equal(t, "one", inv.Metrics.Drift.PreviousScanID)
	assert.Equal(t, []string{"/new/mcp.json"}, inv.Metrics.Drift.ConfigsAdded)
	assert.Len(t, inv.Metrics.Drift.FindingsAdded, 1)
	assert.Empty(t, inv.Metrics.Drift.FindingsRemoved)
	assert.True(t, inv.Metrics.Drift.Changed)
}

func TestRun_AggregatorFailureIsNotFatal(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("down")}
	c, path := newTestCollector(t, WithAggregator(agg, "ep-1"))
	inv, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, inv)
	assert.Empty(t, agg.stored)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	c := New(WithHost(fixedHost), WithSnapshotPath(filepath.Join(blocker, "inventory.json")))
	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist snapshot")
}

func TestRun_CorruptPreviousSnapshotIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	c := New(WithHost(fixedHost), WithSnapshotPath(path))
	inv, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, inv.Metrics.Drift)

	back, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, inv.ScanID, back.ScanID)
}

func TestFirstEvidence(t *testing.T) {
	start := time.Unix(0, 0)
	cfgDone := start.Add(40 * time.Millisecond)
	procDone := start.Add(3 * time.Second)
	cfgFinding := []types.Finding{{Type: types.FindingStdioConfig}}
	procFinding := []types.Finding{{Type: types.FindingStdioProcess}}

	assert.Equal(t, int64(0), firstEvidence(start, nil, cfgDone, procDone))
	assert.Equal(t, int64(40), firstEvidence(start, cfgFinding, cfgDone, procDone))
	assert.Equal(t, int64(3000), firstEvidence(start, procFinding, cfgDone, procDone))
	assert.Equal(t, int64(40), firstEvidence(start, append(cfgFinding, procFinding...), cfgDone, procDone))
}
