// Package discovery locates MCP server declarations on disk and MCP server
// processes running under IDE-family ancestors.
package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/internal/redact"
	"github.com/agentsh/mcpscope/pkg/types"
)

// RepoResolver resolves repository context for a config path.
type RepoResolver interface {
	Repo(ctx context.Context, path string) *types.RepoContext
}

// Configs discovers MCP configuration files.
type Configs struct {
	workspace string
	home      string
	goos      string
	paths     []string
	extra     []string
	repos     RepoResolver
	redactor  *redact.Redactor
	logger    *slog.Logger
}

// ConfigOption configures Configs.
type ConfigOption func(*Configs)

// WithWorkspace sets the workspace directory probed for project configs.
func WithWorkspace(dir string) ConfigOption { return func(c *Configs) { c.workspace = dir } }

// WithHome sets the home directory probed for user configs.
func WithHome(dir string) ConfigOption { return func(c *Configs) { c.home = dir } }

// WithConfigGOOS overrides the platform used to pick extra paths.
func WithConfigGOOS(goos string) ConfigOption { return func(c *Configs) { c.goos = goos } }

// WithPaths replaces the candidate list entirely.
func WithPaths(paths ...string) ConfigOption {
	return func(c *Configs) { c.paths = append([]string(nil), paths...) }
}

// WithExtraPaths adds candidates after the built-in ones.
func WithExtraPaths(paths ...string) ConfigOption {
	return func(c *Configs) { c.extra = append(c.extra, paths...) }
}

// WithRepoResolver sets the repository context resolver. Nil disables
// repository enrichment.
func WithRepoResolver(r RepoResolver) ConfigOption { return func(c *Configs) { c.repos = r } }

// WithConfigLogger sets the logger. A nil logger discards output.
func WithConfigLogger(l *slog.Logger) ConfigOption { return func(c *Configs) { c.logger = l } }

// NewConfigs returns a config discoverer rooted at the current directory
// and the user's home directory.
func NewConfigs(opts ...ConfigOption) *Configs {
	c := &Configs{goos: runtime.GOOS, redactor: redact.New(redact.DefaultRules)}
	if wd, err := os.Getwd(); err == nil {
		c.workspace = wd
	}
	if home, err := os.UserHomeDir(); err == nil {
		c.home = home
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Paths returns the candidate paths that Discover probes.
func (c *Configs) Paths() []string {
	if c.paths != nil {
		return c.paths
	}
	paths := CandidatePaths(c.workspace, c.home, c.goos)
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	for _, p := range c.extra {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

// Discover probes every candidate path once and returns a record for each
// file that parses as an MCP config. Missing, unreadable and malformed
// files are skipped.
func (c *Configs) Discover(ctx context.Context) []types.ConfigRecord {
	records := []types.ConfigRecord{}
	for _, path := range c.Paths() {
		if ctx.Err() != nil {
			break
		}
		rec, ok := c.load(ctx, path)
		if ok {
			records = append(records, rec)
		}
	}
	return records
}

func (c *Configs) load(ctx context.Context, path string) (types.ConfigRecord, bool) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return types.ConfigRecord{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Debug("config unreadable", "path", path, "error", err)
		return types.ConfigRecord{}, false
	}
	doc, err := parseDocument(data)
	if err != nil {
		c.logger.Debug("config skipped", "path", path, "error", err)
		return types.ConfigRecord{}, false
	}
	servers, err := doc.normalize()
	if err != nil {
		c.logger.Debug("config servers skipped", "path", path, "schema", doc.kind.String(), "error", err)
		return types.ConfigRecord{}, false
	}
	for i := range servers {
		if cfg, ok := c.redactor.RedactConfig(servers[i].Raw).(map[string]any); ok {
			servers[i].Config = cfg
		}
	}

	sum := sha256.Sum256(data)
	rec := types.ConfigRecord{
		Path:    path,
		MTime:   fi.ModTime().Unix(),
		SHA256:  hex.EncodeToString(sum[:]),
		Servers: fingerprint.DedupServers(servers),
	}
	if c.repos != nil {
		rec.Repo = c.repos.Repo(ctx, path)
	}
	c.logger.Debug("config discovered", "path", path, "schema", doc.kind.String(), "servers", len(rec.Servers))
	return rec, true
}
