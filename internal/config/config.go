package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scan       ScanConfig       `yaml:"scan"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Tools      ToolsConfig      `yaml:"tools"`
}

type OutputConfig struct {
	// SnapshotPath is the canonical inventory document.
	SnapshotPath string `yaml:"snapshot_path"`

	HistoryPath       string `yaml:"history_path"`
	HistoryMaxSize    string `yaml:"history_max_size"`
	HistoryMaxBackups int    `yaml:"history_max_backups"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ScanConfig struct {
	// Workspace is the directory probed for project-level configs.
	// Empty means the current directory.
	Workspace  string              `yaml:"workspace"`
	ExtraPaths []string            `yaml:"extra_paths"`
	Processes  ProcessesScanConfig `yaml:"processes"`
}

// ProcessesScanConfig toggles process discovery. The pass interval and
// pattern tables are fixed.
type ProcessesScanConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type AggregatorConfig struct {
	// EndpointID names this host to aggregators; empty uses the hostname.
	EndpointID string                   `yaml:"endpoint_id"`
	SQLite     SQLiteAggregatorConfig   `yaml:"sqlite"`
	Postgres   PostgresAggregatorConfig `yaml:"postgres"`
	Webhook    WebhookAggregatorConfig  `yaml:"webhook"`
	S3         S3AggregatorConfig       `yaml:"s3"`
}

type SQLiteAggregatorConfig struct {
	Path string `yaml:"path"`
}

type PostgresAggregatorConfig struct {
	DSN string `yaml:"dsn"`
}

type WebhookAggregatorConfig struct {
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    string            `yaml:"timeout"`
	MaxElapsed string            `yaml:"max_elapsed"`
}

type S3AggregatorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    *bool  `yaml:"use_ssl"`
}

type MetricsConfig struct {
	// TextfilePath is a node_exporter textfile collector file.
	TextfilePath string `yaml:"textfile_path"`
}

type TracingConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
}

type ToolsConfig struct {
	DisabledFile string `yaml:"disabled_file"`
	CacheTTL     string `yaml:"cache_ttl"`
}

// Load reads the YAML config at path. A missing file yields the defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	dataDir := GetDataDir()
	if cfg.Output.SnapshotPath == "" {
		cfg.Output.SnapshotPath = filepath.Join(dataDir, "inventory.json")
	}
	if cfg.Output.HistoryPath == "" {
		cfg.Output.HistoryPath = filepath.Join(dataDir, "history.jsonl")
	}
	if cfg.Output.HistoryMaxSize == "" {
		cfg.Output.HistoryMaxSize = "10MiB"
	}
	if cfg.Output.HistoryMaxBackups <= 0 {
		cfg.Output.HistoryMaxBackups = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Scan.Processes.Enabled == nil {
		enabled := true
		cfg.Scan.Processes.Enabled = &enabled
	}

	if cfg.Aggregator.Webhook.Timeout == "" {
		cfg.Aggregator.Webhook.Timeout = "5s"
	}
	if cfg.Aggregator.Webhook.MaxElapsed == "" {
		cfg.Aggregator.Webhook.MaxElapsed = "30s"
	}
	if cfg.Aggregator.S3.UseSSL == nil {
		useSSL := true
		cfg.Aggregator.S3.UseSSL = &useSSL
	}

	if cfg.Tools.DisabledFile == "" {
		cfg.Tools.DisabledFile = filepath.Join(GetUserConfigDir(), "disabled_tools.yaml")
	}
	if cfg.Tools.CacheTTL == "" {
		cfg.Tools.CacheTTL = "5m"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MCPSCOPE_DATA_DIR"); v != "" {
		cfg.Output.SnapshotPath = filepath.Join(v, "inventory.json")
		cfg.Output.HistoryPath = filepath.Join(v, "history.jsonl")
	}
	if v := os.Getenv("MCPSCOPE_SNAPSHOT_PATH"); v != "" {
		cfg.Output.SnapshotPath = v
	}
	if v := os.Getenv("MCPSCOPE_HISTORY_PATH"); v != "" {
		cfg.Output.HistoryPath = v
	}
	if v := os.Getenv("MCPSCOPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MCPSCOPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MCPSCOPE_WORKSPACE"); v != "" {
		cfg.Scan.Workspace = v
	}
	if v := os.Getenv("MCPSCOPE_PROCESS_SCAN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scan.Processes.Enabled = &b
		}
	}
	if v := os.Getenv("MCPSCOPE_ENDPOINT_ID"); v != "" {
		cfg.Aggregator.EndpointID = v
	}
	if v := os.Getenv("MCPSCOPE_POSTGRES_DSN"); v != "" {
		cfg.Aggregator.Postgres.DSN = v
	}
	if v := os.Getenv("MCPSCOPE_WEBHOOK_URL"); v != "" {
		cfg.Aggregator.Webhook.URL = v
	}
	if v := os.Getenv("MCPSCOPE_S3_ACCESS_KEY"); v != "" {
		cfg.Aggregator.S3.AccessKey = v
	}
	if v := os.Getenv("MCPSCOPE_S3_SECRET_KEY"); v != "" {
		cfg.Aggregator.S3.SecretKey = v
	}
	if v := os.Getenv("MCPSCOPE_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}

func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", cfg.Logging.Format)
	}

	durations := map[string]string{
		"aggregator.webhook.timeout":     cfg.Aggregator.Webhook.Timeout,
		"aggregator.webhook.max_elapsed": cfg.Aggregator.Webhook.MaxElapsed,
		"tools.cache_ttl":                cfg.Tools.CacheTTL,
	}
	for key, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	if _, err := ParseByteSize(cfg.Output.HistoryMaxSize); err != nil {
		return fmt.Errorf("invalid output.history_max_size: %w", err)
	}

	s3 := cfg.Aggregator.S3
	if (s3.Endpoint == "") != (s3.Bucket == "") {
		return fmt.Errorf("aggregator.s3 needs both endpoint and bucket")
	}
	if w := cfg.Aggregator.Webhook.URL; w != "" && !strings.HasPrefix(w, "http://") && !strings.HasPrefix(w, "https://") {
		return fmt.Errorf("aggregator.webhook.url must be http(s): %q", w)
	}
	return nil
}

// ProcessScanEnabled reports whether running processes are inspected.
func (c *Config) ProcessScanEnabled() bool {
	return c.Scan.Processes.Enabled == nil || *c.Scan.Processes.Enabled
}

// WebhookTimeout is the per-request timeout of the webhook aggregator.
func (c *Config) WebhookTimeout() time.Duration { return mustDuration(c.Aggregator.Webhook.Timeout, 5*time.Second) }

// WebhookMaxElapsed bounds webhook retries.
func (c *Config) WebhookMaxElapsed() time.Duration {
	return mustDuration(c.Aggregator.Webhook.MaxElapsed, 30*time.Second)
}

// ToolsCacheTTL is the lifetime of the disabled-tools cache.
func (c *Config) ToolsCacheTTL() time.Duration { return mustDuration(c.Tools.CacheTTL, 5*time.Minute) }

// HistoryMaxSizeMB is the history rotation size in whole megabytes, at
// least 1.
func (c *Config) HistoryMaxSizeMB() int {
	n, err := ParseByteSize(c.Output.HistoryMaxSize)
	if err != nil || n < 1024*1024 {
		return 1
	}
	return int(n / (1024 * 1024))
}

// S3UseSSL reports whether the S3 endpoint is reached over TLS.
func (c *Config) S3UseSSL() bool {
	return c.Aggregator.S3.UseSSL == nil || *c.Aggregator.S3.UseSSL
}

func mustDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
