// Package postgres is an Aggregator backed by a shared PostgreSQL
// database, for fleets reporting to one place.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mcp_endpoints (
		id TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		os TEXT,
		os_release TEXT,
		username TEXT,
		collector_version TEXT,
		registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mcp_snapshots (
		scan_id TEXT PRIMARY KEY,
		endpoint_id TEXT NOT NULL REFERENCES mcp_endpoints(id),
		collected_at TIMESTAMPTZ NOT NULL,
		schema_version TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS mcp_snapshots_endpoint_ts ON mcp_snapshots(endpoint_id, collected_at DESC)`,
	`CREATE TABLE IF NOT EXISTS mcp_findings (
		scan_id TEXT NOT NULL REFERENCES mcp_snapshots(scan_id) ON DELETE CASCADE,
		endpoint_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		url_host TEXT,
		payload JSONB NOT NULL,
		PRIMARY KEY (scan_id, fingerprint, type)
	)`,
}

type Store struct{ Pool *pgxpool.Pool }

// Open connects to url and creates the schema if needed.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{Pool: p}
	if err := s.migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Store) RegisterEndpoint(ctx context.Context, ep store.Endpoint) error {
	if ep.ID == "" {
		return fmt.Errorf("endpoint missing id")
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO mcp_endpoints (id, hostname, os, os_release, username, collector_version, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			os = EXCLUDED.os,
			os_release = EXCLUDED.os_release,
			username = EXCLUDED.username,
			collector_version = EXCLUDED.collector_version,
			last_seen = GREATEST(mcp_endpoints.last_seen, EXCLUDED.last_seen)
	`, ep.ID, ep.Hostname, ep.OS, ep.OSRelease, ep.Username, ep.CollectorVersion, unixOrNow(ep.LastSeen))
	if err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	return nil
}

func (s *Store) StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error {
	if inv == nil || inv.ScanID == "" {
		return fmt.Errorf("snapshot missing scan id")
	}
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM mcp_endpoints WHERE id = $1`, endpointID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrUnknownEndpoint, endpointID)
	}
	if err != nil {
		return fmt.Errorf("lookup endpoint: %w", err)
	}

	collected := time.Unix(inv.Meta.CollectedAt, 0).UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO mcp_snapshots (scan_id, endpoint_id, collected_at, schema_version, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scan_id) DO UPDATE SET payload = EXCLUDED.payload
	`, inv.ScanID, endpointID, collected, inv.SchemaVersion, payload); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mcp_findings WHERE scan_id = $1`, inv.ScanID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}

	batch := &pgx.Batch{}
	for _, f := range inv.Findings {
		fb, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal finding: %w", err)
		}
		batch.Queue(`
			INSERT INTO mcp_findings (scan_id, endpoint_id, fingerprint, type, severity, url_host, payload)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
			ON CONFLICT DO NOTHING
		`, inv.ScanID, endpointID, f.Fingerprint, string(f.Type), string(f.Severity), f.URLHost, fb)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert findings: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE mcp_endpoints SET last_seen = GREATEST(last_seen, $2) WHERE id = $1`,
		endpointID, collected); err != nil {
		return fmt.Errorf("touch endpoint: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for endpointID.
func (s *Store) LatestSnapshot(ctx context.Context, endpointID string) (*types.Inventory, error) {
	var payload []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT payload FROM mcp_snapshots
		WHERE endpoint_id = $1
		ORDER BY collected_at DESC
		LIMIT 1
	`, endpointID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var inv types.Inventory
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &inv, nil
}

func unixOrNow(sec int64) time.Time {
	if sec == 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
