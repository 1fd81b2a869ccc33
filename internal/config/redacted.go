package config

import (
	"github.com/agentsh/mcpscope/internal/redact"
	"github.com/agentsh/mcpscope/internal/repoctx"
)

// Redacted returns a copy of c safe to print: credentials in URLs are
// stripped and secrets and header values are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Aggregator.Postgres.DSN = redact.Redact(repoctx.SanitizeURL(c.Aggregator.Postgres.DSN))
	out.Aggregator.Webhook.URL = repoctx.SanitizeURL(c.Aggregator.Webhook.URL)
	out.Aggregator.Webhook.Headers = maskValues(c.Aggregator.Webhook.Headers)
	out.Tracing.Headers = maskValues(c.Tracing.Headers)
	if out.Aggregator.S3.AccessKey != "" {
		out.Aggregator.S3.AccessKey = redact.Mask
	}
	if out.Aggregator.S3.SecretKey != "" {
		out.Aggregator.S3.SecretKey = redact.Mask
	}
	return out
}

func maskValues(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k := range m {
		out[k] = redact.Mask
	}
	return out
}
