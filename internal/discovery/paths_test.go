package discovery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidatePaths_Order(t *testing.T) {
	ws := filepath.Join(string(filepath.Separator), "work", "proj")
	home := filepath.Join(string(filepath.Separator), "home", "me")

	paths := CandidatePaths(ws, home, "linux")
	assert.Len(t, paths, len(WorkspaceConfigPaths)+len(HomeConfigPaths))
	assert.Equal(t, filepath.Join(ws, ".vscode", "mcp.json"), paths[0])
	assert.Equal(t, filepath.Join(home, ".cursor", "mcp.json"), paths[len(WorkspaceConfigPaths)])
	assert.Equal(t, filepath.Join(home, ".config", "claude", "claude_desktop_config.json"), paths[len(paths)-1])
}

func TestCandidatePaths_Darwin(t *testing.T) {
	home := filepath.Join(string(filepath.Separator), "Users", "me")
	paths := CandidatePaths("", home, "darwin")
	assert.Len(t, paths, len(HomeConfigPaths)+len(DarwinHomeConfigPaths))
	assert.Contains(t, paths, filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"))
}

func TestCandidatePaths_WorkspaceIsHome(t *testing.T) {
	home := filepath.Join(string(filepath.Separator), "home", "me")
	paths := CandidatePaths(home, home, "linux")
	seen := map[string]int{}
	for _, p := range paths {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, p)
	}
	// .cursor/mcp.json and .vscode/mcp.json appear in both groups
	assert.Len(t, paths, len(WorkspaceConfigPaths)+len(HomeConfigPaths)-2)
}
