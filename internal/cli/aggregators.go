package cli

import (
	"context"
	"log/slog"

	"github.com/agentsh/mcpscope/internal/config"
	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/internal/store/composite"
	"github.com/agentsh/mcpscope/internal/store/postgres"
	"github.com/agentsh/mcpscope/internal/store/s3"
	"github.com/agentsh/mcpscope/internal/store/sqlite"
	"github.com/agentsh/mcpscope/internal/store/webhook"
)

// openAggregators opens every configured aggregator. One that cannot be
// opened is logged and left out; forwarding never blocks a scan. The
// result is nil when nothing is configured or nothing opened.
func openAggregators(ctx context.Context, cfg *config.Config, logger *slog.Logger) store.Aggregator {
	agg := cfg.Aggregator
	var opened []store.Aggregator
	add := func(kind string, a store.Aggregator, err error) {
		if err != nil {
			logger.Warn("aggregator disabled", "kind", kind, "error", err)
			return
		}
		opened = append(opened, a)
	}

	if agg.SQLite.Path != "" {
		st, err := sqlite.Open(agg.SQLite.Path)
		add("sqlite", st, err)
	}
	if agg.Postgres.DSN != "" {
		st, err := postgres.Open(ctx, agg.Postgres.DSN)
		add("postgres", st, err)
	}
	if agg.Webhook.URL != "" {
		st, err := webhook.New(agg.Webhook.URL, cfg.WebhookTimeout(), agg.Webhook.Headers,
			webhook.WithMaxElapsed(cfg.WebhookMaxElapsed()))
		add("webhook", st, err)
	}
	if agg.S3.Endpoint != "" {
		st, err := s3.New(agg.S3.Endpoint, agg.S3.AccessKey, agg.S3.SecretKey, cfg.S3UseSSL(), agg.S3.Bucket, agg.S3.Prefix)
		add("s3", st, err)
	}

	if len(opened) == 0 {
		return nil
	}
	if len(opened) == 1 {
		return opened[0]
	}
	return composite.New(opened[0], opened[1:]...)
}
