package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinClasses_Compile(t *testing.T) {
	r := NewClassRegistry()
	for _, name := range r.List() {
		t.Run(name, func(t *testing.T) {
			_, err := r.Matches(name, "x")
			require.NoError(t, err)
		})
	}
	assert.Equal(t, TablesVersion, r.Version())
}

func TestIDEClass(t *testing.T) {
	r := NewClassRegistry()
	tests := []struct {
		input string
		want  bool
	}{
		{"Code", true},
		{"Code Helper (Plugin)", true},
		{"/Applications/Cursor.app/Contents/MacOS/Cursor", true},
		{"/opt/idea/bin/idea.sh", true},
		{"pycharm64.exe", true},
		{"devenv.exe", true},
		{"/home/u/.vscode-server/bin/abc/node", true},
		{"devcontainer exec --workspace-folder .", true},
		{"claude", true},
		{"node /usr/lib/node_modules/@anthropic-ai/claude-code/cli.js", true},
		{"node /usr/local/bin/codex", true},
		{"node /usr/local/bin/gemini", true},
		{"/opt/bin/goose-cli session", true},
		{"/usr/bin/zed-editor", true},
		{"zed-editor", true},
		{"rider64.exe", true},
		{"idea64.exe", true},
		{"/usr/share/code/code --unity-launch", true},
		{"amp --execute", true},
		{"node /home/u/code/app.js", false},
		{"unicode-tool", false},
		{"amplify serve", false},
		{"bash", false},
		{"provider-service", false},
		{"sshd", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Matches(ClassIDE, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMCPSignatureClass(t *testing.T) {
	r := NewClassRegistry()
	tests := []struct {
		input string
		want  bool
	}{
		{"npx -y @modelcontextprotocol/server-filesystem /data", true},
		{"uvx mcp-server-git", true},
		{"python -m MCP_server_time", true},
		{"node /srv/github-mcp/index.js", true},
		{"node /srv/app/index.js", false},
		{"/usr/bin/zsh -l", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Matches(ClassMCPSignature, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassRegistry_MatchesAny(t *testing.T) {
	r := NewClassRegistry()
	ok, err := r.MatchesAny(ClassIDE, "", "bash", "cursor")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MatchesAny(ClassIDE, "", "bash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassRegistry_Swappable(t *testing.T) {
	r := NewClassRegistryFrom("test-1", map[string][]string{
		"ide":  {"@edit"},
		"edit": {"myeditor*"},
	})
	assert.Equal(t, "test-1", r.Version())

	ok, err := r.Matches("ide", "MyEditor-Helper")
	require.NoError(t, err)
	assert.True(t, ok)

	r.Extend("edit", []string{"other"})
	ok, err = r.Matches("ide", "other")
	require.NoError(t, err)
	assert.True(t, ok)

	r.Set("edit", []string{"third"})
	ok, err = r.Matches("ide", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassRegistry_Errors(t *testing.T) {
	r := NewClassRegistryFrom("v", map[string][]string{
		"loop": {"@loop"},
		"bad":  {"re:[invalid"},
	})
	_, err := r.Matches("missing", "x")
	assert.ErrorContains(t, err, "unknown class")

	_, err = r.Matches("loop", "x")
	assert.ErrorContains(t, err, "references itself")

	_, err = r.Matches("bad", "x")
	assert.ErrorContains(t, err, "failed to compile class")
}

func TestClassRegistry_GetReturnsCopy(t *testing.T) {
	r := NewClassRegistry()
	p, err := r.Get("vscode")
	require.NoError(t, err)
	p[0] = "mutated"
	again, _ := r.Get("vscode")
	assert.NotEqual(t, "mutated", again[0])
	assert.True(t, r.Has("agent"))
	assert.False(t, r.Has("nope"))
}
