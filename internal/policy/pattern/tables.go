package pattern

import (
	"fmt"
	"sort"
	"sync"
)

// TablesVersion identifies the revision of BuiltinClasses. Bump it whenever
// a table changes so snapshots can be correlated with the classifier used.
const TablesVersion = "2025.04"

// Class names used by process discovery.
const (
	ClassIDE          = "ide"
	ClassMCPSignature = "mcp-signature"
)

// IDEFamilies lists the classes that together make up ClassIDE.
var IDEFamilies = []string{"jetbrains", "visual-studio", "vscode", "container", "agent"}

// BuiltinClasses holds the default tables. Patterns are matched
// case-insensitively against a process name or its full command line.
// Short product names are written as prefix ("name*") and path-segment
// ("*/name*") globs so wrappers like "node /usr/local/bin/codex" or
// "zed-editor" still match.
var BuiltinClasses = map[string][]string{
	"jetbrains": {
		"*jetbrains*", "*intellij*", "idea*", "*/idea*", "*idea.sh*",
		"*pycharm*", "*webstorm*", "*goland*", "*clion*", "*phpstorm*",
		"*rubymine*", "*datagrip*", "*rustrover*", "rider*", "*/rider*",
		"*android studio*", "*studio64*", "fleet*", "*/fleet*",
	},

	"visual-studio": {
		"*devenv*", "*microsoft visual studio*",
		"*visual studio 20*", "servicehub.*",
	},

	"vscode": {
		"code", "code *", "*/code", "*/code *", "*code.exe*",
		"code-oss*", "*/code-oss*", "code-insiders*", "code - insiders*",
		"*code helper*", "*visual studio code*", "*vscode*", "codium*", "*vscodium*",
		"cursor*", "*/cursor*", "*cursor.exe*", "*cursor.app*", "*cursor-server*",
		"*windsurf*",
	},

	// dev containers and remote workspaces
	"container": {
		"*devcontainer*", "*remote-containers*", "*vscode-remote*",
		"*codespaces*", "*gitpod*",
	},

	// agent launchers that spawn MCP servers directly
	"agent": {
		"claude*", "*/claude*", "*claude.app*", "*claude-code*", "*@anthropic-ai/claude*",
		"aider*", "*/aider*",
		"goose*", "*/goose*",
		"cline*", "*/cline*", "*saoudrizwan.claude-dev*",
		"codex*", "*/codex*", "*@openai/codex*",
		"gemini*", "*/gemini*", "*@google/gemini-cli*",
		"amp", "amp *", "*/amp", "*/amp *", "*@sourcegraph/amp*",
		"zed*", "*/zed*", "*zed.app*",
		"*copilot-language-server*", "*copilot-agent*",
	},

	ClassIDE: {"@jetbrains", "@visual-studio", "@vscode", "@container", "@agent"},

	ClassMCPSignature: {
		"*mcp*",
		"*modelcontextprotocol*",
		`re:\b(?:npx|bunx|pnpx)\b.*mcp`,
		`re:\buv\s+run\b.*mcp`,
		`re:\buvx\b.*mcp`,
		`re:\bpipx?\s+run\b.*mcp`,
		`re:\bpython[0-9.]*\b.*mcp`,
		`re:\bnode\b.*mcp`,
	},
}

// ClassRegistry holds a versioned set of named pattern tables. Class
// references inside a table are flattened when the class is compiled.
type ClassRegistry struct {
	mu       sync.RWMutex
	version  string
	classes  map[string][]string
	compiled map[string]*PatternSet
}

// NewClassRegistry returns a registry seeded with BuiltinClasses.
func NewClassRegistry() *ClassRegistry {
	return NewClassRegistryFrom(TablesVersion, BuiltinClasses)
}

// NewClassRegistryFrom returns a registry holding a copy of tables.
func NewClassRegistryFrom(version string, tables map[string][]string) *ClassRegistry {
	r := &ClassRegistry{
		version:  version,
		classes:  make(map[string][]string, len(tables)),
		compiled: make(map[string]*PatternSet),
	}
	for name, patterns := range tables {
		r.classes[name] = append([]string{}, patterns...)
	}
	return r
}

// Version returns the tables revision.
func (r *ClassRegistry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Get returns a copy of the raw patterns for a class (without @ prefix).
func (r *ClassRegistry) Get(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patterns, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("unknown class: @%s", name)
	}
	return append([]string{}, patterns...), nil
}

// Has checks if a class exists.
func (r *ClassRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[name]
	return ok
}

// Set adds or replaces a class.
func (r *ClassRegistry) Set(name string, patterns []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[name] = append([]string{}, patterns...)
	r.compiled = make(map[string]*PatternSet)
}

// Extend appends patterns to a class, creating it if needed.
func (r *ClassRegistry) Extend(name string, patterns []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[name] = append(r.classes[name], patterns...)
	r.compiled = make(map[string]*PatternSet)
}

// List returns all class names, sorted.
func (r *ClassRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Matches reports whether input matches any pattern of a class.
func (r *ClassRegistry) Matches(name, input string) (bool, error) {
	ps, err := r.compile(name)
	if err != nil {
		return false, err
	}
	return ps.MatchAny(input), nil
}

// MatchesAny reports whether any non-empty input matches class name.
func (r *ClassRegistry) MatchesAny(name string, inputs ...string) (bool, error) {
	ps, err := r.compile(name)
	if err != nil {
		return false, err
	}
	for _, in := range inputs {
		if in != "" && ps.MatchAny(in) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ClassRegistry) compile(name string) (*PatternSet, error) {
	r.mu.RLock()
	ps, ok := r.compiled[name]
	r.mu.RUnlock()
	if ok {
		return ps, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ps, ok := r.compiled[name]; ok {
		return ps, nil
	}
	flat, err := r.flatten(name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	ps, err = NewPatternSetWithOptions(flat, CompileOptions{MaxRegexComplexity: 1000, CaseInsensitive: true})
	if err != nil {
		return nil, fmt.Errorf("failed to compile class @%s: %w", name, err)
	}
	r.compiled[name] = ps
	return ps, nil
}

// flatten expands class references. Caller holds r.mu.
func (r *ClassRegistry) flatten(name string, visiting map[string]bool) ([]string, error) {
	patterns, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("unknown class: @%s", name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("class @%s references itself", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var out []string
	for _, raw := range patterns {
		if len(raw) > 1 && raw[0] == '@' {
			sub, err := r.flatten(raw[1:], visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}
