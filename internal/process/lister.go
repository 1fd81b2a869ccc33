package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
)

// ErrUnavailable is returned when no listing source produced output.
var ErrUnavailable = errors.New("process listing unavailable")

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const powershellQuery = "Get-CimInstance Win32_Process | " +
	"Select-Object ProcessId,ParentProcessId,Name,CommandLine | " +
	"ConvertTo-Csv -NoTypeInformation"

// Lister captures the host process table using the platform's listing
// commands.
type Lister struct {
	runner   Runner
	goos     string
	procRoot string
	logger   *slog.Logger
}

// Option configures a Lister.
type Option func(*Lister)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option { return func(l *Lister) { l.runner = r } }

// WithGOOS overrides the detected operating system.
func WithGOOS(goos string) Option { return func(l *Lister) { l.goos = goos } }

// WithProcRoot sets the procfs mount used by the Linux fallback.
func WithProcRoot(root string) Option { return func(l *Lister) { l.procRoot = root } }

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option { return func(l *Lister) { l.logger = logger } }

// NewLister returns a Lister for the current platform.
func NewLister(opts ...Option) *Lister {
	l := &Lister{
		runner:   ExecRunner{},
		goos:     runtime.GOOS,
		procRoot: "/proc",
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// List captures the process table once.
func (l *Lister) List(ctx context.Context) ([]Info, error) {
	if l.goos == "windows" {
		return l.listWindows(ctx)
	}
	procs, err := l.listPS(ctx)
	if err == nil {
		return procs, nil
	}
	l.logger.Debug("ps listing failed", "error", err)
	if l.goos == "linux" {
		procs, perr := ReadProcFS(l.procRoot)
		if perr == nil {
			return procs, nil
		}
		l.logger.Debug("procfs listing failed", "error", perr)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (l *Lister) listPS(ctx context.Context) ([]Info, error) {
	names, err := l.runner.Run(ctx, "ps", "-axww", "-o", "pid=,ppid=,comm=")
	if err != nil {
		return nil, fmt.Errorf("ps names: %w", err)
	}
	args, err := l.runner.Run(ctx, "ps", "-axww", "-o", "pid=,args=")
	if err != nil {
		return nil, fmt.Errorf("ps args: %w", err)
	}
	procs := JoinPS(ParsePSNames(string(names)), ParsePSArgs(string(args)))
	if len(procs) == 0 {
		return nil, fmt.Errorf("ps returned no processes")
	}
	return procs, nil
}

func (l *Lister) listWindows(ctx context.Context) ([]Info, error) {
	out, err := l.runner.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", powershellQuery)
	if err == nil {
		if procs, perr := ParseProcessCSV(string(out)); perr == nil && len(procs) > 0 {
			return procs, nil
		} else if perr != nil {
			l.logger.Debug("powershell output unparseable", "error", perr)
		}
	} else {
		l.logger.Debug("powershell listing failed", "error", err)
	}

	out, err = l.runner.Run(ctx, "wmic", "process", "get", "ProcessId,ParentProcessId,Name,CommandLine", "/format:csv")
	if err != nil {
		return nil, fmt.Errorf("%w: wmic: %v", ErrUnavailable, err)
	}
	procs, err := ParseProcessCSV(string(out))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return procs, nil
}
