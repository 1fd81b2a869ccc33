// Package sqlite is a local Aggregator keeping endpoints, snapshots and
// their findings in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			hostname TEXT NOT NULL,
			os TEXT,
			os_release TEXT,
			username TEXT,
			collector_version TEXT,
			registered_ts_unix INTEGER NOT NULL,
			last_seen_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			scan_id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL REFERENCES endpoints(id),
			collected_at INTEGER NOT NULL,
			schema_version TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_endpoint_ts ON snapshots(endpoint_id, collected_at);`,
		`CREATE TABLE IF NOT EXISTS findings (
			scan_id TEXT NOT NULL REFERENCES snapshots(scan_id) ON DELETE CASCADE,
			endpoint_id TEXT NOT NULL,
			collected_at INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			url_host TEXT,
			payload_json TEXT NOT NULL,
			UNIQUE(scan_id, fingerprint, type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_endpoint ON findings(endpoint_id, collected_at);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_host ON findings(url_host);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) RegisterEndpoint(ctx context.Context, ep store.Endpoint) error {
	if ep.ID == "" {
		return fmt.Errorf("endpoint missing id")
	}
	lastSeen := ep.LastSeen
	if lastSeen == 0 {
		lastSeen = s.now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO endpoints(
			id, hostname, os, os_release, username, collector_version,
			registered_ts_unix, last_seen_unix
		) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			hostname=excluded.hostname,
			os=excluded.os,
			os_release=excluded.os_release,
			username=excluded.username,
			collector_version=excluded.collector_version,
			last_seen_unix=MAX(endpoints.last_seen_unix, excluded.last_seen_unix);`,
		ep.ID,
		ep.Hostname,
		nullable(ep.OS),
		nullable(ep.OSRelease),
		nullable(ep.Username),
		nullable(ep.CollectorVersion),
		s.now().Unix(),
		lastSeen,
	)
	if err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	return nil
}

func (s *Store) StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error {
	if inv == nil || inv.ScanID == "" {
		return fmt.Errorf("snapshot missing scan id")
	}
	b, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM endpoints WHERE id = ?`, endpointID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup endpoint: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", store.ErrUnknownEndpoint, endpointID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots(scan_id, endpoint_id, collected_at, schema_version, payload_json)
		VALUES(?,?,?,?,?);`,
		inv.ScanID, endpointID, inv.Meta.CollectedAt, inv.SchemaVersion, string(b),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE scan_id = ?`, inv.ScanID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	for _, f := range inv.Findings {
		fb, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal finding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO findings(
				scan_id, endpoint_id, collected_at, fingerprint, type, severity, url_host, payload_json
			) VALUES(?,?,?,?,?,?,?,?);`,
			inv.ScanID, endpointID, inv.Meta.CollectedAt, f.Fingerprint, string(f.Type),
			string(f.Severity), nullable(f.URLHost), string(fb),
		); err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE endpoints SET last_seen_unix = MAX(last_seen_unix, ?) WHERE id = ?`,
		inv.Meta.CollectedAt, endpointID,
	); err != nil {
		return fmt.Errorf("touch endpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Endpoints lists registered endpoints ordered by id.
func (s *Store) Endpoints(ctx context.Context) ([]store.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hostname, COALESCE(os,''), COALESCE(os_release,''), COALESCE(username,''),
			COALESCE(collector_version,''), last_seen_unix
		FROM endpoints ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	out := []store.Endpoint{}
	for rows.Next() {
		var ep store.Endpoint
		if err := rows.Scan(&ep.ID, &ep.Hostname, &ep.OS, &ep.OSRelease, &ep.Username, &ep.CollectorVersion, &ep.LastSeen); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query endpoints rows: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns the most recent snapshot stored for endpointID.
func (s *Store) LatestSnapshot(ctx context.Context, endpointID string) (*types.Inventory, error) {
	var payload string
	row := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM snapshots WHERE endpoint_id = ? ORDER BY collected_at DESC, rowid DESC LIMIT 1`,
		endpointID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var inv types.Inventory
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &inv, nil
}

func (s *Store) QueryFindings(ctx context.Context, q store.FindingQuery) ([]store.StoredFinding, error) {
	where := []string{"1=1"}
	var args []any

	if q.EndpointID != "" {
		where = append(where, "endpoint_id = ?")
		args = append(args, q.EndpointID)
	}
	if q.ScanID != "" {
		where = append(where, "scan_id = ?")
		args = append(args, q.ScanID)
	}
	if len(q.Severities) > 0 {
		place := make([]string, 0, len(q.Severities))
		for _, sev := range q.Severities {
			place = append(place, "?")
			args = append(args, string(sev))
		}
		where = append(where, "severity IN ("+strings.Join(place, ",")+")")
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.HostLike != "" {
		where = append(where, "url_host LIKE ?")
		args = append(args, q.HostLike)
	}
	limit := q.Limit
	if limit <= 0 || limit > 5000 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT scan_id, endpoint_id, collected_at, payload_json FROM findings WHERE `+
			strings.Join(where, " AND ")+` ORDER BY collected_at DESC, rowid ASC LIMIT ?`,
		append(args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	out := []store.StoredFinding{}
	for rows.Next() {
		var sf store.StoredFinding
		var payload string
		if err := rows.Scan(&sf.ScanID, &sf.EndpointID, &sf.CollectedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &sf.Finding); err != nil {
			return nil, fmt.Errorf("unmarshal finding: %w", err)
		}
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query findings rows: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
