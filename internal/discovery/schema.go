package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/tailscale/hujson"
)

// ErrUnknownSchema is returned for JSON documents that declare no servers
// in any recognized shape.
var ErrUnknownSchema = errors.New("unrecognized MCP config shape")

type schemaKind int

const (
	schemaMCPWrapper   schemaKind = iota // {"mcp": {"servers": ...}}
	schemaServers                        // {"servers": ...}
	schemaMCPServers                     // {"mcpServers": ...}
	schemaDevcontainer                   // {"customizations": {"vscode": {"mcp": {"servers": ...}}}}
)

func (k schemaKind) String() string {
	switch k {
	case schemaMCPWrapper:
		return "mcp.servers"
	case schemaServers:
		return "servers"
	case schemaMCPServers:
		return "mcpServers"
	case schemaDevcontainer:
		return "devcontainer"
	default:
		return "unknown"
	}
}

// configDocument is the tagged union of accepted config shapes. servers
// holds the raw servers collection, an array or a name-keyed object.
type configDocument struct {
	kind    schemaKind
	servers json.RawMessage
}

// shapes lists where each schema keeps its servers collection, in
// precedence order.
var shapes = []struct {
	kind schemaKind
	path []string
}{
	{schemaMCPWrapper, []string{"mcp", "servers"}},
	{schemaServers, []string{"servers"}},
	{schemaMCPServers, []string{"mcpServers"}},
	{schemaDevcontainer, []string{"customizations", "vscode", "mcp", "servers"}},
}

// parseDocument decodes data into a configDocument. JSON with comments and
// trailing commas (as written by VS Code) is accepted. Each shape is probed
// on its own, so an unrelated key of an unexpected type does not hide a
// valid servers collection elsewhere in the document.
func parseDocument(data []byte) (configDocument, error) {
	std, err := hujson.Standardize(append([]byte(nil), data...))
	if err != nil {
		return configDocument{}, fmt.Errorf("parse config: %w", err)
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(std, &root); err != nil {
		return configDocument{}, fmt.Errorf("parse config: %w", err)
	}
	for _, sh := range shapes {
		if servers, ok := lookup(root, sh.path); ok && collection(servers) {
			return configDocument{kind: sh.kind, servers: servers}, nil
		}
	}
	return configDocument{}, ErrUnknownSchema
}

// lookup follows path through nested objects. Any step that is missing or
// not an object ends the lookup.
func lookup(obj map[string]json.RawMessage, path []string) (json.RawMessage, bool) {
	for i, key := range path {
		v, ok := obj[key]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		var next map[string]json.RawMessage
		if err := json.Unmarshal(v, &next); err != nil || next == nil {
			return nil, false
		}
		obj = next
	}
	return nil, false
}

// collection reports whether m is a JSON array or object.
func collection(m json.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

// normalize converts the servers collection into declarations. Array
// entries keep their order; object entries are emitted in sorted key order.
// Entries that are not objects are skipped.
func (d configDocument) normalize() ([]types.ServerDeclaration, error) {
	trimmed := strings.TrimSpace(string(d.servers))
	var out []types.ServerDeclaration
	switch {
	case strings.HasPrefix(trimmed, "["):
		var list []json.RawMessage
		if err := json.Unmarshal(d.servers, &list); err != nil {
			return nil, fmt.Errorf("parse %s array: %w", d.kind, err)
		}
		for i, item := range list {
			var m map[string]any
			if json.Unmarshal(item, &m) != nil || m == nil {
				continue
			}
			name, _ := m["name"].(string)
			if name == "" {
				name = fmt.Sprintf("server-%d", i)
			}
			out = append(out, declaration(name, m))
		}
	case strings.HasPrefix(trimmed, "{"):
		var byName map[string]json.RawMessage
		if err := json.Unmarshal(d.servers, &byName); err != nil {
			return nil, fmt.Errorf("parse %s object: %w", d.kind, err)
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			var m map[string]any
			if json.Unmarshal(byName[name], &m) != nil || m == nil {
				continue
			}
			out = append(out, declaration(name, m))
		}
	default:
		return nil, fmt.Errorf("%s: servers must be an array or object", d.kind)
	}
	return out, nil
}

func declaration(name string, m map[string]any) types.ServerDeclaration {
	d := types.ServerDeclaration{
		Name:    name,
		Command: strings.TrimSpace(stringField(m, "command")),
		URL:     strings.TrimSpace(stringField(m, "url", "serverUrl", "httpUrl")),
		Args:    stringList(m["args"]),
		Raw:     m,
	}
	d.Transport = transportOf(stringField(m, "type", "transport"), d.Command)
	return d
}

// transportOf maps an explicit transport declaration, falling back to
// stdio when a command is present and http otherwise.
func transportOf(declared, command string) types.Transport {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "stdio", "local":
		return types.TransportStdio
	case "http", "sse", "streamable-http", "streamablehttp", "streamable_http", "remote":
		return types.TransportHTTP
	}
	if command != "" {
		return types.TransportStdio
	}
	return types.TransportHTTP
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			out = append(out, x)
		case nil:
		default:
			out = append(out, fmt.Sprint(x))
		}
	}
	return out
}
