package discovery

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/agentsh/mcpscope/internal/fingerprint"
	"github.com/agentsh/mcpscope/internal/policy/pattern"
	"github.com/agentsh/mcpscope/internal/process"
	"github.com/agentsh/mcpscope/internal/redact"
	"github.com/agentsh/mcpscope/pkg/types"
)

// DefaultPassInterval separates the two process capture passes so that
// short-lived MCP children spawned between them are still observed.
const DefaultPassInterval = 3 * time.Second

// ProcessLister captures the host process table.
type ProcessLister interface {
	List(ctx context.Context) ([]process.Info, error)
}

// Processes discovers MCP server processes running under IDE-family
// ancestors.
type Processes struct {
	lister   ProcessLister
	registry *pattern.ClassRegistry
	redactor *redact.Redactor
	interval time.Duration
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	selfPID  int
	logger   *slog.Logger
}

// ProcessOption configures Processes.
type ProcessOption func(*Processes)

// WithLister replaces the process listing source.
func WithLister(l ProcessLister) ProcessOption { return func(p *Processes) { p.lister = l } }

// WithRegistry replaces the IDE and MCP-signature pattern tables.
func WithRegistry(r *pattern.ClassRegistry) ProcessOption {
	return func(p *Processes) { p.registry = r }
}

// WithInterval sets the wait between the two capture passes.
func WithInterval(d time.Duration) ProcessOption { return func(p *Processes) { p.interval = d } }

// WithSleep replaces the wait between passes.
func WithSleep(fn func(context.Context, time.Duration) error) ProcessOption {
	return func(p *Processes) { p.sleep = fn }
}

// WithClock sets the clock used to timestamp passes.
func WithClock(now func() time.Time) ProcessOption { return func(p *Processes) { p.now = now } }

// WithSelfPID sets the pid excluded from results.
func WithSelfPID(pid int) ProcessOption { return func(p *Processes) { p.selfPID = pid } }

// WithProcessLogger sets the logger. A nil logger discards output.
func WithProcessLogger(l *slog.Logger) ProcessOption { return func(p *Processes) { p.logger = l } }

// NewProcesses returns a process discoverer using the platform lister and
// the built-in pattern tables.
func NewProcesses(opts ...ProcessOption) *Processes {
	p := &Processes{
		registry: pattern.NewClassRegistry(),
		redactor: redact.New(redact.DefaultRules),
		interval: DefaultPassInterval,
		sleep:    sleepContext,
		now:      time.Now,
		selfPID:  os.Getpid(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.lister == nil {
		p.lister = process.NewLister(process.WithLogger(p.logger))
	}
	return p
}

// TablesVersion reports the version of the pattern tables in use.
func (p *Processes) TablesVersion() string { return p.registry.Version() }

// Discover runs two capture passes separated by the pass interval and
// returns the deduplicated MCP processes seen in either. A cancelled
// context skips the second pass.
func (p *Processes) Discover(ctx context.Context) []types.ProcessRecord {
	all := p.scanPass(ctx)
	if err := p.sleep(ctx, p.interval); err == nil {
		all = append(all, p.scanPass(ctx)...)
	} else {
		p.logger.Debug("second process pass skipped", "error", err)
	}
	out := fingerprint.DedupProcesses(all)
	if out == nil {
		out = []types.ProcessRecord{}
	}
	return out
}

func (p *Processes) scanPass(ctx context.Context) []types.ProcessRecord {
	ts := p.now().Unix()
	procs, err := p.lister.List(ctx)
	if err != nil {
		p.logger.Debug("process listing failed", "error", err)
		return nil
	}
	tbl := process.NewTable(procs)

	ide := tbl.Filter(func(info process.Info) bool {
		return info.PID != p.selfPID && p.matches(pattern.ClassIDE, info.Name, info.Cmd)
	})
	ancestors := outermost(tbl, ide)

	var out []types.ProcessRecord
	recorded := make(map[int]bool)
	for _, anc := range ancestors {
		tbl.Walk(anc.PID, func(d process.Info) bool {
			if d.PID == p.selfPID || recorded[d.PID] {
				return true
			}
			cmd := d.Cmd
			if cmd == "" {
				cmd = d.Name
			}
			if !p.matches(pattern.ClassMCPSignature, cmd) {
				return true
			}
			recorded[d.PID] = true
			out = append(out, types.ProcessRecord{
				PID:         d.PID,
				PPID:        d.PPID,
				ParentName:  anc.Name,
				Cmd:         cmd,
				CmdRedacted: p.redactor.Redact(cmd),
				FirstSeen:   ts,
				LastSeen:    ts,
				Fingerprint: fingerprint.Process(cmd),
			})
			return true
		})
	}
	p.logger.Debug("process pass complete", "processes", tbl.Len(), "ide_ancestors", len(ide), "mcp", len(out))
	return out
}

// outermost keeps the IDE-family processes that have no IDE-family process
// above them. Walking down from these covers every nested match and names
// records after the top-level IDE rather than one of its helpers.
func outermost(tbl *process.Table, ide []process.Info) []process.Info {
	isIDE := make(map[int]bool, len(ide))
	for _, info := range ide {
		isIDE[info.PID] = true
	}
	var out []process.Info
	for _, info := range ide {
		if !hasIDEAbove(tbl, info, isIDE) {
			out = append(out, info)
		}
	}
	return out
}

func hasIDEAbove(tbl *process.Table, info process.Info, isIDE map[int]bool) bool {
	var found, lower bool
	seen := make(map[int]bool)
	for pid := info.PPID; pid > 0; {
		if pid == info.PID {
			// info is on a parent cycle; its lowest IDE pid is the root
			return lower
		}
		if seen[pid] {
			break
		}
		seen[pid] = true
		if isIDE[pid] {
			found = true
			lower = lower || pid < info.PID
		}
		parent, ok := tbl.Get(pid)
		if !ok {
			break
		}
		pid = parent.PPID
	}
	return found
}

func (p *Processes) matches(class string, inputs ...string) bool {
	ok, err := p.registry.MatchesAny(class, inputs...)
	if err != nil {
		p.logger.Debug("pattern class unusable", "class", class, "error", err)
		return false
	}
	return ok
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
