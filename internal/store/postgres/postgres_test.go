package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set MCPSCOPE_TEST_POSTGRES_DSN to run against a live database.
func openLive(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("MCPSCOPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MCPSCOPE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestUnixOrNow(t *testing.T) {
	assert.Equal(t, time.Unix(42, 0).UTC(), unixOrNow(42))
	assert.WithinDuration(t, time.Now(), unixOrNow(0), time.Minute)
}

func TestLiveRoundTrip(t *testing.T) {
	s := openLive(t)
	ctx := context.Background()
	id := "test-" + uuid.NewString()

	err := s.StoreSnapshot(ctx, id, &types.Inventory{ScanID: uuid.NewString()})
	assert.ErrorIs(t, err, store.ErrUnknownEndpoint)

	require.NoError(t, s.RegisterEndpoint(ctx, store.Endpoint{ID: id, Hostname: "ci"}))
	require.NoError(t, s.RegisterEndpoint(ctx, store.Endpoint{ID: id, Hostname: "ci"}))

	inv := &types.Inventory{
		SchemaVersion: types.SchemaVersion,
		ScanID:        uuid.NewString(),
		Meta:          types.Meta{Hostname: "ci", CollectedAt: time.Now().Unix()},
		Findings:      []types.Finding{{Severity: types.SeverityHigh, Type: types.FindingStdioConfig, Fingerprint: "abcd"}},
	}
	require.NoError(t, s.StoreSnapshot(ctx, id, inv))

	got, err := s.LatestSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, inv.ScanID, got.ScanID)
	assert.Len(t, got.Findings, 1)
}
