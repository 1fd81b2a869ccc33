package capability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDisabledTTL is how long a loaded disabled-tools set is trusted.
const DefaultDisabledTTL = 5 * time.Minute

// Loader returns the current set of disabled tool keys (see Key).
type Loader func(ctx context.Context) ([]string, error)

// DisabledTools caches the disabled-tools set for a TTL. The clock is
// injectable so expiry can be tested without sleeping.
type DisabledTools struct {
	mu       sync.Mutex
	load     Loader
	ttl      time.Duration
	now      func() time.Time
	set      map[string]bool
	loadedAt time.Time
	loaded   bool
}

// CacheOption configures DisabledTools.
type CacheOption func(*DisabledTools)

// WithTTL sets the cache lifetime. Non-positive values disable caching.
func WithTTL(ttl time.Duration) CacheOption { return func(d *DisabledTools) { d.ttl = ttl } }

// WithClock sets the time source.
func WithClock(now func() time.Time) CacheOption { return func(d *DisabledTools) { d.now = now } }

// NewDisabledTools returns a cache backed by load.
func NewDisabledTools(load Loader, opts ...CacheOption) *DisabledTools {
	d := &DisabledTools{load: load, ttl: DefaultDisabledTTL, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key builds the cache key for a tool on a server. An empty server makes
// the key apply to the tool on every server.
func Key(server, tool string) string {
	if server == "" {
		return strings.ToLower(tool)
	}
	return strings.ToLower(server + "/" + tool)
}

// IsDisabled reports whether tool on server is disabled, either for that
// server or for every server.
func (d *DisabledTools) IsDisabled(ctx context.Context, server, tool string) (bool, error) {
	set, err := d.current(ctx)
	if err != nil {
		return false, err
	}
	return set[Key(server, tool)] || set[Key("", tool)], nil
}

// List returns the disabled keys, sorted.
func (d *DisabledTools) List(ctx context.Context) ([]string, error) {
	set, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate forces the next lookup to reload.
func (d *DisabledTools) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
}

// current returns the cached set, reloading when expired. If a reload
// fails and a previous set exists, the stale set is served.
func (d *DisabledTools) current(ctx context.Context) (map[string]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.loaded && d.ttl > 0 && now.Sub(d.loadedAt) < d.ttl {
		return d.set, nil
	}
	keys, err := d.load(ctx)
	if err != nil {
		if d.set != nil {
			return d.set, nil
		}
		return nil, fmt.Errorf("load disabled tools: %w", err)
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			set[strings.ToLower(k)] = true
		}
	}
	d.set, d.loadedAt, d.loaded = set, now, true
	return set, nil
}

type disabledFile struct {
	DisabledTools []string `yaml:"disabled_tools"`
}

// FileLoader reads disabled tool keys from a YAML file of the form
//
//	disabled_tools:
//	  - github/delete_repository
//	  - run_shell
//
// A missing file yields an empty set.
func FileLoader(path string) Loader {
	return func(ctx context.Context) ([]string, error) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var f disabledFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return f.DisabledTools, nil
	}
}
