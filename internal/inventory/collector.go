// Package inventory assembles one scan: it runs config and process
// discovery, generates findings, computes metrics and drift, and persists
// the snapshot.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/internal/findings"
	"github.com/agentsh/mcpscope/internal/metrics"
	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/observability"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ConfigDiscoverer finds MCP config files.
type ConfigDiscoverer interface {
	Discover(ctx context.Context) []types.ConfigRecord
}

// ProcessDiscoverer finds running MCP processes.
type ProcessDiscoverer interface {
	Discover(ctx context.Context) []types.ProcessRecord
}

// UserResolver reports who is logged in on the host.
type UserResolver interface {
	User(ctx context.Context) types.UserContext
}

// HistoryWriter records a summary of each scan.
type HistoryWriter interface {
	Append(ctx context.Context, s store.Summary) error
}

// Collector runs scans.
type Collector struct {
	version       string
	tablesVersion string
	configs       ConfigDiscoverer
	processes     ProcessDiscoverer
	users         UserResolver
	host          HostInfo
	snapshotPath  string

	history     HistoryWriter
	aggregator  store.Aggregator
	endpointID  string
	metrics     *metrics.Collector
	metricsPath string

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithVersion sets the collector version recorded in snapshots.
func WithVersion(v string) Option { return func(c *Collector) { c.version = v } }

// WithTablesVersion sets the pattern tables revision reported in metrics.
func WithTablesVersion(v string) Option { return func(c *Collector) { c.tablesVersion = v } }

// WithConfigs sets the config file discovery source.
func WithConfigs(d ConfigDiscoverer) Option { return func(c *Collector) { c.configs = d } }

// WithProcesses sets the process discovery source.
func WithProcesses(d ProcessDiscoverer) Option { return func(c *Collector) { c.processes = d } }

// WithUsers sets the resolver for the scanning user.
func WithUsers(u UserResolver) Option { return func(c *Collector) { c.users = u } }

// WithHost replaces the hostname and OS lookup.
func WithHost(h HostInfo) Option { return func(c *Collector) { c.host = h } }

// WithSnapshotPath sets where the snapshot is written.
func WithSnapshotPath(p string) Option { return func(c *Collector) { c.snapshotPath = p } }

// WithHistory appends a summary of each scan to h.
func WithHistory(h HistoryWriter) Option { return func(c *Collector) { c.history = h } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// WithIDGenerator replaces the scan id generator.
func WithIDGenerator(fn func() string) Option { return func(c *Collector) { c.newID = fn } }

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option { return func(c *Collector) { c.logger = l } }

// WithAggregator forwards each snapshot to agg under endpointID. An empty
// id uses the hostname.
func WithAggregator(agg store.Aggregator, endpointID string) Option {
	return func(c *Collector) { c.aggregator, c.endpointID = agg, endpointID }
}

// WithMetrics writes a Prometheus textfile to path after each scan.
func WithMetrics(m *metrics.Collector, path string) Option {
	return func(c *Collector) { c.metrics, c.metricsPath = m, path }
}

// New returns a Collector. Discovery sources left unset find nothing.
func New(opts ...Option) *Collector {
	c := &Collector{
		version:      "dev",
		host:         LocalHost,
		snapshotPath: DefaultSnapshotPath(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// SnapshotPath is where Run writes the snapshot.
func (c *Collector) SnapshotPath() string { return c.snapshotPath }

// Run performs one scan and persists the result. Only a failure to write
// the snapshot is returned as an error.
func (c *Collector) Run(ctx context.Context) (*types.Inventory, error) {
	start := c.now()
	ctx, span := observability.StartPhase(ctx, observability.PhaseScan)
	defer span.End()

	inv := &types.Inventory{
		SchemaVersion:    types.SchemaVersion,
		CollectorVersion: c.version,
		ScanID:           c.newID(),
		Configs:          []types.ConfigRecord{},
		Processes:        types.ProcessInventory{Supported: true, Items: []types.ProcessRecord{}},
		Findings:         []types.Finding{},
	}
	span.SetAttributes(attribute.String("scan.id", inv.ScanID))
	c.logger.InfoContext(ctx, "scan started", "scan_id", inv.ScanID)

	hostname, osInfo := c.host(ctx)
	inv.Meta = types.Meta{Hostname: hostname, OS: osInfo, CollectedAt: start.Unix()}
	if c.users != nil {
		inv.Meta.User = c.users.User(ctx)
	}

	prev := c.previous()

	var (
		mu          sync.Mutex
		configsDone time.Time
		procsDone   time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if c.configs == nil {
			return nil
		}
		pctx, pspan := observability.StartPhase(gctx, observability.PhaseDiscoverConfigs)
		defer pspan.End()
		recs := c.configs.Discover(pctx)
		observability.RecordCount(pspan, "configs", len(recs))
		mu.Lock()
		inv.Configs, configsDone = recs, c.now()
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if c.processes == nil {
			return nil
		}
		pctx, pspan := observability.StartPhase(gctx, observability.PhaseDiscoverProcesses)
		defer pspan.End()
		recs := c.processes.Discover(pctx)
		observability.RecordCount(pspan, "processes", len(recs))
		mu.Lock()
		inv.Processes.Items, procsDone = recs, c.now()
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if prev != nil {
		inv.Processes.Items = fingerprint.MergePrior(inv.Processes.Items, prev.Processes.Items)
	}

	_, fspan := observability.StartPhase(ctx, observability.PhaseFindings)
	inv.Findings = findings.Generate(inv.Configs, inv.Processes.Items, start)
	observability.RecordCount(fspan, "findings", len(inv.Findings))
	fspan.End()

	elapsed := c.now().Sub(start).Milliseconds()
	inv.Meta.ScanDurationMS = elapsed
	inv.Metrics = types.CollectorMetrics{
		Coverage: types.Coverage{
			ConfigsFound:   len(inv.Configs),
			ReposWithMCP:   ReposWithMCP(inv.Configs),
			StdioProcesses: len(inv.Processes.Items),
		},
		ShadowIT: types.ShadowIT{
			UnsanctionedHosts: UnsanctionedHosts(inv.Findings),
			ShadowProcesses:   ShadowProcesses(inv.Configs, inv.Processes.Items),
		},
		Performance: types.Performance{
			ScanDurationMS:        elapsed,
			TimeToFirstEvidenceMS: firstEvidence(start, inv.Findings, configsDone, procsDone),
		},
		Drift: ComputeDrift(prev, inv),
	}

	_, wspan := observability.StartPhase(ctx, observability.PhaseWriteSnapshot,
		attribute.String("snapshot.path", c.snapshotPath))
	err := WriteSnapshot(c.snapshotPath, inv)
	observability.RecordError(wspan, err)
	wspan.End()
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	c.logger.InfoContext(ctx, "scan complete",
		"scan_id", inv.ScanID,
		"configs", len(inv.Configs),
		"processes", len(inv.Processes.Items),
		"findings", len(inv.Findings),
		"duration_ms", elapsed,
	)

	c.afterWrite(ctx, inv)
	return inv, nil
}

// previous loads the snapshot about to be replaced. A missing or unreadable
// snapshot means there is nothing to merge or diff against.
func (c *Collector) previous() *types.Inventory {
	prev, err := ReadSnapshot(c.snapshotPath)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			c.logger.Debug("previous snapshot ignored", "path", c.snapshotPath, "error", err)
		}
		return nil
	}
	return prev
}

// afterWrite runs the optional side channels. None of them can fail the
// scan.
func (c *Collector) afterWrite(ctx context.Context, inv *types.Inventory) {
	if c.history != nil {
		if err := c.history.Append(ctx, store.Summarize(inv)); err != nil {
			c.logger.WarnContext(ctx, "history append failed", "error", err)
		}
	}
	if c.metrics != nil && c.metricsPath != "" {
		c.metrics.Observe(inv, c.tablesVersion)
		if err := c.metrics.WriteTextfile(c.metricsPath); err != nil {
			c.logger.WarnContext(ctx, "metrics textfile write failed", "path", c.metricsPath, "error", err)
		}
	}
	if c.aggregator != nil {
		fctx, span := observability.StartPhase(ctx, observability.PhaseForward)
		err := c.forward(fctx, inv)
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			c.logger.WarnContext(ctx, "aggregator forward failed", "scan_id", inv.ScanID, "error", err)
		}
	}
}

func (c *Collector) forward(ctx context.Context, inv *types.Inventory) error {
	ep := store.EndpointFor(c.endpointID, inv)
	if err := c.aggregator.RegisterEndpoint(ctx, ep); err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	if err := c.aggregator.StoreSnapshot(ctx, ep.ID, inv); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// firstEvidence is the time from scan start until the earliest discovery
// that contributed a finding completed, or 0 with no findings.
func firstEvidence(start time.Time, fs []types.Finding, configsDone, procsDone time.Time) int64 {
	var fromConfigs, fromProcs bool
	for _, f := range fs {
		if f.Type == types.FindingStdioProcess {
			fromProcs = true
		} else {
			fromConfigs = true
		}
	}
	var first time.Time
	if fromConfigs && !configsDone.IsZero() {
		first = configsDone
	}
	if fromProcs && !procsDone.IsZero() && (first.IsZero() || procsDone.Before(first)) {
		first = procsDone
	}
	if first.IsZero() {
		return 0
	}
	ms := first.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
