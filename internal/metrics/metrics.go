// Package metrics exposes scan results as Prometheus gauges, written to a
// node_exporter textfile collector file after each scan.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the gauges describing the latest scan.
type Collector struct {
	registry *prometheus.Registry

	info              *prometheus.GaugeVec
	configsFound      prometheus.Gauge
	reposWithMCP      prometheus.Gauge
	stdioProcesses    prometheus.Gauge
	findings          *prometheus.GaugeVec
	unsanctionedHosts prometheus.Gauge
	shadowProcesses   prometheus.Gauge
	scanDuration      prometheus.Gauge
	firstEvidence     prometheus.Gauge
	lastScan          prometheus.Gauge
	drift             prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mcpscope_collector_info",
			Help: "Collector build and pattern table versions (always 1)",
		}, []string{"version", "schema_version", "tables_version"}),
		configsFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_configs_found",
			Help: "MCP configuration files found in the last scan",
		}),
		reposWithMCP: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_repos_with_mcp",
			Help: "Distinct repositories declaring MCP servers",
		}),
		stdioProcesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_stdio_processes",
			Help: "Running MCP stdio processes under an IDE or agent",
		}),
		findings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mcpscope_findings",
			Help: "Findings in the last scan by severity and type",
		}, []string{"severity", "type"}),
		unsanctionedHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_unsanctioned_hosts",
			Help: "Distinct remote MCP hosts outside the trusted list",
		}),
		shadowProcesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_shadow_processes",
			Help: "Running MCP processes with no matching config declaration",
		}),
		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_scan_duration_seconds",
			Help: "Wall time of the last scan",
		}),
		firstEvidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_time_to_first_evidence_seconds",
			Help: "Time from scan start to the first finding evidence",
		}),
		lastScan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_last_scan_timestamp_seconds",
			Help: "Unix time the last scan was collected",
		}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpscope_drift",
			Help: "1 if the last scan differs from the one before it",
		}),
	}
	c.registry.MustRegister(
		c.info, c.configsFound, c.reposWithMCP, c.stdioProcesses, c.findings,
		c.unsanctionedHosts, c.shadowProcesses, c.scanDuration, c.firstEvidence,
		c.lastScan, c.drift,
	)
	return c
}

// Registry returns the registry holding the collector's gauges.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe replaces all gauges with the values of inv.
func (c *Collector) Observe(inv *types.Inventory, tablesVersion string) {
	if c == nil || inv == nil {
		return
	}
	c.info.Reset()
	c.info.WithLabelValues(inv.CollectorVersion, inv.SchemaVersion, tablesVersion).Set(1)

	m := inv.Metrics
	c.configsFound.Set(float64(m.Coverage.ConfigsFound))
	c.reposWithMCP.Set(float64(m.Coverage.ReposWithMCP))
	c.stdioProcesses.Set(float64(m.Coverage.StdioProcesses))
	c.unsanctionedHosts.Set(float64(len(m.ShadowIT.UnsanctionedHosts)))
	c.shadowProcesses.Set(float64(m.ShadowIT.ShadowProcesses))
	c.scanDuration.Set(msToSeconds(m.Performance.ScanDurationMS))
	c.firstEvidence.Set(msToSeconds(m.Performance.TimeToFirstEvidenceMS))
	c.lastScan.Set(float64(inv.Meta.CollectedAt))
	if m.Drift != nil && m.Drift.Changed {
		c.drift.Set(1)
	} else {
		c.drift.Set(0)
	}

	c.findings.Reset()
	for _, f := range inv.Findings {
		c.findings.WithLabelValues(string(f.Severity), string(f.Type)).Inc()
	}
}

// WriteTextfile writes the gauges in Prometheus text format to path,
// atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func msToSeconds(ms int64) float64 {
	return (time.Duration(ms) * time.Millisecond).Seconds()
}
