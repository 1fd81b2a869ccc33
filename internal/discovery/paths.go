package discovery

import (
	"path/filepath"
	"strings"
)

// WorkspaceConfigPaths are probed relative to the workspace directory, in
// order.
var WorkspaceConfigPaths = []string{
	".vscode/mcp.json",
	".cursor/mcp.json",
	".idea/mcp.json",
	".vs/mcp.json",
	".windsurf/mcp.json",
	".mcp.json",
	".devcontainer/devcontainer.json",
	".devcontainer/mcp.json",
	".devcontainer.json",
}

// HomeConfigPaths are probed relative to the user's home directory.
var HomeConfigPaths = []string{
	".cursor/mcp.json",
	".vscode/mcp.json",
	".codeium/windsurf/mcp_config.json",
	".config/Code/User/mcp.json",
	".config/JetBrains/mcp.json",
	".claude.json",
	".config/claude/claude_desktop_config.json",
}

// DarwinHomeConfigPaths are additional home-relative paths on macOS.
var DarwinHomeConfigPaths = []string{
	"Library/Application Support/Claude/claude_desktop_config.json",
	"Library/Application Support/Code/User/mcp.json",
	"Library/Application Support/Cursor/User/mcp.json",
}

// CandidatePaths returns the absolute, de-duplicated probe list. Workspace
// paths come first, then home paths, then platform extras. An empty
// workspace or home skips that group.
func CandidatePaths(workspace, home, goos string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(base string, rels []string) {
		if base == "" {
			return
		}
		for _, rel := range rels {
			p := filepath.Join(base, filepath.FromSlash(rel))
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			key := p
			if goos == "windows" || goos == "darwin" {
				key = strings.ToLower(p)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	add(workspace, WorkspaceConfigPaths)
	add(home, HomeConfigPaths)
	if goos == "darwin" {
		add(home, DarwinHomeConfigPaths)
	}
	return out
}
