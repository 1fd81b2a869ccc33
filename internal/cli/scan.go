package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/agentsh/mcpscope/internal/discovery"
	"github.com/agentsh/mcpscope/internal/inventory"
	"github.com/agentsh/mcpscope/internal/metrics"
	"github.com/agentsh/mcpscope/internal/repoctx"
	"github.com/agentsh/mcpscope/internal/store/jsonl"
	"github.com/agentsh/mcpscope/pkg/observability"
	"github.com/spf13/cobra"
)

func newScanCmd(version string) *cobra.Command {
	var (
		jsonOut     bool
		noProcesses bool
		noForward   bool
		workspace   string
		output      string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Collect the MCP inventory of this host and write the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, logger := rt.cfg, rt.logger
			if workspace != "" {
				cfg.Scan.Workspace = workspace
			}
			if output != "" {
				cfg.Output.SnapshotPath = output
			}
			if noProcesses {
				off := false
				cfg.Scan.Processes.Enabled = &off
			}
			ctx := cmd.Context()

			shutdown, err := observability.SetupTracing(ctx, observability.TracingConfig{
				Endpoint:       cfg.Tracing.Endpoint,
				Insecure:       cfg.Tracing.Insecure,
				Headers:        cfg.Tracing.Headers,
				ServiceVersion: version,
			})
			if err != nil {
				logger.Warn("tracing disabled", "error", err)
			} else {
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						logger.Debug("tracing shutdown", "error", err)
					}
				}()
			}

			if err := os.MkdirAll(filepath.Dir(cfg.Output.SnapshotPath), 0o700); err != nil {
				return exitErrorf(ExitFailure, "scan failed: create snapshot dir: %v", err)
			}
			release, err := inventory.AcquireLock(cfg.Output.SnapshotPath)
			if err != nil {
				if errors.Is(err, inventory.ErrLocked) {
					return exitErrorf(ExitFailure, "%v", err)
				}
				return exitErrorf(ExitFailure, "scan failed: %v", err)
			}
			defer func() {
				if err := release(); err != nil {
					logger.Warn("lock release failed", "error", err)
				}
			}()

			c := newCollector(ctx, rt, version, noForward)
			inv, err := c.collector.Run(ctx)
			c.close()
			if err != nil {
				return exitErrorf(ExitFailure, "scan failed: %v", err)
			}

			if jsonOut {
				return printJSON(cmd, inv)
			}
			printInventory(cmd.OutOrStdout(), inv, c.collector.SnapshotPath(), useColor(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the snapshot as JSON")
	cmd.Flags().BoolVar(&noProcesses, "no-processes", false, "Skip the running process scan")
	cmd.Flags().BoolVar(&noForward, "no-forward", false, "Do not forward the snapshot to aggregators")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace directory probed for project configs")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot path (overrides output.snapshot_path)")
	return cmd
}

// scanPipeline is a configured collector and the resources it holds open.
type scanPipeline struct {
	collector *inventory.Collector
	closers   []func() error
	rt        *runtimeEnv
}

func (p *scanPipeline) close() {
	for _, fn := range p.closers {
		if err := fn(); err != nil {
			p.rt.logger.Debug("close", "error", err)
		}
	}
}

func newCollector(ctx context.Context, rt *runtimeEnv, version string, noForward bool) *scanPipeline {
	cfg, logger := rt.cfg, rt.logger
	p := &scanPipeline{rt: rt}

	resolver := repoctx.New(repoctx.WithLogger(logger))
	configOpts := []discovery.ConfigOption{
		discovery.WithRepoResolver(resolver),
		discovery.WithExtraPaths(cfg.Scan.ExtraPaths...),
		discovery.WithConfigLogger(logger),
	}
	if cfg.Scan.Workspace != "" {
		configOpts = append(configOpts, discovery.WithWorkspace(cfg.Scan.Workspace))
	}
	procs := discovery.NewProcesses(
		discovery.WithProcessLogger(logger),
	)

	opts := []inventory.Option{
		inventory.WithVersion(version),
		inventory.WithTablesVersion(procs.TablesVersion()),
		inventory.WithConfigs(discovery.NewConfigs(configOpts...)),
		inventory.WithUsers(resolver),
		inventory.WithSnapshotPath(cfg.Output.SnapshotPath),
		inventory.WithLogger(logger),
	}
	if cfg.ProcessScanEnabled() {
		opts = append(opts, inventory.WithProcesses(procs))
	}

	if history, err := jsonl.New(cfg.Output.HistoryPath, cfg.HistoryMaxSizeMB(), cfg.Output.HistoryMaxBackups); err != nil {
		logger.Warn("scan history disabled", "path", cfg.Output.HistoryPath, "error", err)
	} else {
		opts = append(opts, inventory.WithHistory(history))
		p.closers = append(p.closers, history.Close)
	}

	if cfg.Metrics.TextfilePath != "" {
		opts = append(opts, inventory.WithMetrics(metrics.New(), cfg.Metrics.TextfilePath))
	}

	if !noForward {
		if agg := openAggregators(ctx, cfg, logger); agg != nil {
			opts = append(opts, inventory.WithAggregator(agg, cfg.Aggregator.EndpointID))
			p.closers = append(p.closers, agg.Close)
		}
	}

	p.collector = inventory.New(opts...)
	return p
}
