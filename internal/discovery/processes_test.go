package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentsh/mcpscope/internal/policy/pattern"
	"github.com/agentsh/mcpscope/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLister struct {
	passes [][]process.Info
	errs   []error
	calls  int
}

func (s *scriptedLister) List(context.Context) ([]process.Info, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.passes) {
		return s.passes[i], nil
	}
	return nil, nil
}

type steppingClock struct{ t time.Time }

func (c *steppingClock) now() time.Time { return c.t }

func newTestProcesses(l ProcessLister, clock *steppingClock, extra ...ProcessOption) *Processes {
	opts := []ProcessOption{
		WithLister(l),
		WithClock(clock.now),
		WithSelfPID(999),
		WithSleep(func(_ context.Context, d time.Duration) error {
			clock.t = clock.t.Add(d)
			return nil
		}),
	}
	return NewProcesses(append(opts, extra...)...)
}

var basePass = []process.Info{
	{PID: 1, PPID: 0, Name: "launchd", Cmd: "/sbin/launchd"},
	{PID: 100, PPID: 1, Name: "Cursor", Cmd: "/Applications/Cursor.app/Contents/MacOS/Cursor"},
	{PID: 110, PPID: 100, Name: "Cursor Helper (Plugin)", Cmd: "/Applications/Cursor.app/Contents/Frameworks/Cursor Helper (Plugin).app/Contents/MacOS/Cursor Helper (Plugin) --type=utility"},
	{PID: 120, PPID: 110, Name: "node", Cmd: "npx -y @modelcontextprotocol/server-filesystem /Users/me --token=s3cr3tvalue"},
	{PID: 130, PPID: 110, Name: "node", Cmd: "node /Users/me/app/server.js"},
	{PID: 200, PPID: 1, Name: "zsh", Cmd: "-zsh"},
	{PID: 210, PPID: 200, Name: "uvx", Cmd: "uvx mcp-server-git"},
	{PID: 999, PPID: 100, Name: "mcpscope", Cmd: "mcpscope scan"},
}

func TestProcesses_Discover(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	second := append([]process.Info{}, basePass...)
	second = append(second, process.Info{PID: 140, PPID: 110, Name: "python3", Cmd: "python3 -m mcp_server_time"})
	l := &scriptedLister{passes: [][]process.Info{basePass, second}}

	records := newTestProcesses(l, clock).Discover(context.Background())
	assert.Equal(t, 2, l.calls)
	require.Len(t, records, 2)

	fs := records[0]
	assert.Equal(t, 120, fs.PID)
	assert.Equal(t, 110, fs.PPID)
	assert.Equal(t, "Cursor", fs.ParentName)
	assert.NotContains(t, fs.CmdRedacted, "s3cr3tvalue")
	assert.Equal(t, int64(1000), fs.FirstSeen)
	assert.Equal(t, int64(1003), fs.LastSeen)
	assert.Len(t, fs.Fingerprint, 16)

	py := records[1]
	assert.Equal(t, 140, py.PID)
	assert.Equal(t, int64(1003), py.FirstSeen)
	assert.Equal(t, int64(1003), py.LastSeen)
}

func TestProcesses_ShellOnlyAncestryIgnored(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	l := &scriptedLister{passes: [][]process.Info{
		{{PID: 200, PPID: 1, Name: "zsh"}, {PID: 210, PPID: 200, Name: "uvx", Cmd: "uvx mcp-server-git"}},
	}}
	assert.Empty(t, newTestProcesses(l, clock).Discover(context.Background()))
}

func TestProcesses_ListingFailureDegrades(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	l := &scriptedLister{
		passes: [][]process.Info{nil, basePass},
		errs:   []error{errors.New("ps: not found")},
	}
	records := newTestProcesses(l, clock).Discover(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, int64(1003), records[0].FirstSeen)
}

func TestProcesses_NothingFound(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	l := &scriptedLister{errs: []error{errors.New("x"), errors.New("y")}}
	records := newTestProcesses(l, clock).Discover(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestProcesses_CancelledSkipsSecondPass(t *testing.T) {
	l := &scriptedLister{passes: [][]process.Info{basePass, basePass}}
	p := NewProcesses(WithLister(l), WithInterval(time.Hour), WithSelfPID(999))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := p.Discover(ctx)
	assert.Equal(t, 1, l.calls)
	assert.Len(t, records, 1)
}

func TestProcesses_CustomRegistry(t *testing.T) {
	reg := pattern.NewClassRegistryFrom("test", map[string][]string{
		pattern.ClassIDE:          {"zsh"},
		pattern.ClassMCPSignature: {"*git*"},
	})
	clock := &steppingClock{t: time.Unix(1000, 0)}
	l := &scriptedLister{passes: [][]process.Info{basePass, basePass}}
	p := newTestProcesses(l, clock, WithRegistry(reg))
	assert.Equal(t, "test", p.TablesVersion())

	records := p.Discover(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, 210, records[0].PID)
	assert.Equal(t, "zsh", records[0].ParentName)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestProcesses_AgentLaunchers(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{"node", "node /usr/local/bin/codex"},
		{"node", "node /usr/local/bin/gemini"},
		{"goose-cli", "/opt/bin/goose-cli session"},
		{"zed-editor", "/usr/bin/zed-editor"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			clock := &steppingClock{t: time.Unix(1000, 0)}
			pass := []process.Info{
				{PID: 300, PPID: 1, Name: tt.name, Cmd: tt.cmd},
				{PID: 310, PPID: 300, Name: "node", Cmd: "npx -y @modelcontextprotocol/server-filesystem /data"},
			}
			l := &scriptedLister{passes: [][]process.Info{pass, pass}}
			records := newTestProcesses(l, clock).Discover(context.Background())
			require.Len(t, records, 1)
			assert.Equal(t, 310, records[0].PID)
			assert.Equal(t, tt.name, records[0].ParentName)
		})
	}
}

func TestProcesses_ParentNameIsOutermostIDE(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	// helper pid sorts before the IDE that spawned it
	pass := []process.Info{
		{PID: 40, PPID: 500, Name: "Code Helper (Plugin)", Cmd: "Code Helper (Plugin) --type=utility"},
		{PID: 45, PPID: 40, Name: "uvx", Cmd: "uvx mcp-server-git"},
		{PID: 500, PPID: 1, Name: "Code", Cmd: "/usr/share/code/code"},
	}
	l := &scriptedLister{passes: [][]process.Info{pass, pass}}
	records := newTestProcesses(l, clock).Discover(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "Code", records[0].ParentName)
}

func TestProcesses_ParentCycleTerminates(t *testing.T) {
	clock := &steppingClock{t: time.Unix(1000, 0)}
	pass := []process.Info{
		{PID: 10, PPID: 20, Name: "cursor", Cmd: "cursor"},
		{PID: 20, PPID: 10, Name: "cursor", Cmd: "cursor --helper"},
		{PID: 30, PPID: 10, Name: "uvx", Cmd: "uvx mcp-server-git"},
	}
	l := &scriptedLister{passes: [][]process.Info{pass, pass}}
	records := newTestProcesses(l, clock).Discover(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, 30, records[0].PID)
	assert.Equal(t, "cursor", records[0].ParentName)
}

func TestProcesses_DefaultPassInterval(t *testing.T) {
	var waited time.Duration
	l := &scriptedLister{passes: [][]process.Info{basePass, basePass}}
	p := NewProcesses(WithLister(l), WithSelfPID(999), WithSleep(func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}))
	p.Discover(context.Background())
	assert.Equal(t, DefaultPassInterval, waited)
	assert.Equal(t, 3*time.Second, waited)
}
