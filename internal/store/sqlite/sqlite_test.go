package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agg", "mcpscope.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(scanID string, at int64, findings ...types.Finding) *types.Inventory {
	return &types.Inventory{
		SchemaVersion: types.SchemaVersion,
		ScanID:        scanID,
		Meta:          types.Meta{Hostname: "dev-box", CollectedAt: at},
		Findings:      findings,
	}
}

func TestRegisterEndpointIsIdempotent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	ep := store.Endpoint{ID: "ep1", Hostname: "dev-box", OS: "linux", CollectorVersion: "1.0", LastSeen: 100}
	require.NoError(t, s.RegisterEndpoint(ctx, ep))
	ep.CollectorVersion = "1.1"
	ep.LastSeen = 50
	require.NoError(t, s.RegisterEndpoint(ctx, ep))

	eps, err := s.Endpoints(ctx)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "1.1", eps[0].CollectorVersion)
	assert.Equal(t, int64(100), eps[0].LastSeen, "last_seen never moves backwards")

	assert.Error(t, s.RegisterEndpoint(ctx, store.Endpoint{}))
}

func TestStoreSnapshotRequiresEndpoint(t *testing.T) {
	s := openTemp(t)
	err := s.StoreSnapshot(context.Background(), "missing", snapshot("scan-1", 1))
	assert.ErrorIs(t, err, store.ErrUnknownEndpoint)
}

func TestStoreAndQuery(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.RegisterEndpoint(ctx, store.Endpoint{ID: "ep1", Hostname: "dev-box", LastSeen: 1}))

	high := types.Finding{Severity: types.SeverityHigh, Type: types.FindingStdioConfig, Fingerprint: "aaaa"}
	med := types.Finding{Severity: types.SeverityMedium, Type: types.FindingHTTPConfig, Fingerprint: "bbbb", URLHost: "mcp.example.com"}

	require.NoError(t, s.StoreSnapshot(ctx, "ep1", snapshot("scan-1", 100, high)))
	require.NoError(t, s.StoreSnapshot(ctx, "ep1", snapshot("scan-2", 200, high, med)))
	// storing the same scan twice replaces it
	require.NoError(t, s.StoreSnapshot(ctx, "ep1", snapshot("scan-2", 200, high, med)))

	latest, err := s.LatestSnapshot(ctx, "ep1")
	require.NoError(t, err)
	assert.Equal(t, "scan-2", latest.ScanID)
	assert.Len(t, latest.Findings, 2)

	all, err := s.QueryFindings(ctx, store.FindingQuery{EndpointID: "ep1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	meds, err := s.QueryFindings(ctx, store.FindingQuery{Severities: []types.Severity{types.SeverityMedium}})
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "mcp.example.com", meds[0].Finding.URLHost)
	assert.Equal(t, "scan-2", meds[0].ScanID)

	hosts, err := s.QueryFindings(ctx, store.FindingQuery{HostLike: "%example%", ScanID: "scan-2"})
	require.NoError(t, err)
	assert.Len(t, hosts, 1)

	eps, err := s.Endpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), eps[0].LastSeen)
}

func TestLatestSnapshotNotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.LatestSnapshot(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
