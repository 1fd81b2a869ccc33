package discovery

import (
	"testing"

	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_Shapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind schemaKind
	}{
		{"mcp wrapper", `{"mcp":{"servers":{"a":{"command":"x"}}}}`, schemaMCPWrapper},
		{"servers", `{"servers":{"a":{"command":"x"}}}`, schemaServers},
		{"mcpServers", `{"mcpServers":{"a":{"command":"x"}}}`, schemaMCPServers},
		{"devcontainer", `{"image":"x","customizations":{"vscode":{"mcp":{"servers":{"a":{"url":"http://h"}}}}}}`, schemaDevcontainer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseDocument([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, doc.kind)
			servers, err := doc.normalize()
			require.NoError(t, err)
			require.Len(t, servers, 1)
			assert.Equal(t, "a", servers[0].Name)
		})
	}
}

func TestParseDocument_Errors(t *testing.T) {
	_, err := parseDocument([]byte(`{not json`))
	assert.Error(t, err)

	_, err = parseDocument([]byte(`{"editor.fontSize": 12}`))
	assert.ErrorIs(t, err, ErrUnknownSchema)

	_, err = parseDocument([]byte(`{"servers": null}`))
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestParseDocument_JSONC(t *testing.T) {
	doc := `{
  // servers for this workspace
  "servers": {
    "git": {
      "command": "uvx", /* launcher */
      "args": ["mcp-server-git", "--url", "http://example.com/a//b"],
    },
  },
}`
	d, err := parseDocument([]byte(doc))
	require.NoError(t, err)
	servers, err := d.normalize()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"mcp-server-git", "--url", "http://example.com/a//b"}, servers[0].Args)
}

func TestNormalize_ArrayAndObject(t *testing.T) {
	doc, err := parseDocument([]byte(`{"servers":[
		{"name":"fs","command":"/usr/bin/mcp-fs","args":["--root","/data"]},
		"junk",
		{"url":"https://mcp.example.com/mcp"}
	]}`))
	require.NoError(t, err)
	servers, err := doc.normalize()
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, "fs", servers[0].Name)
	assert.Equal(t, types.TransportStdio, servers[0].Transport)
	assert.Equal(t, []string{"--root", "/data"}, servers[0].Args)

	assert.Equal(t, "server-2", servers[1].Name)
	assert.Equal(t, types.TransportHTTP, servers[1].Transport)
	assert.Equal(t, []string{}, servers[1].Args)

	doc, err = parseDocument([]byte(`{"mcpServers":{"zeta":{"command":"z"},"alpha":{"command":"a"},"mid":{"command":"m"}}}`))
	require.NoError(t, err)
	servers, err = doc.normalize()
	require.NoError(t, err)
	names := []string{servers[0].Name, servers[1].Name, servers[2].Name}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestParseDocument_MismatchedShapeSkipped(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind schemaKind
	}{
		{"mcp is a bool", `{"mcp": true, "mcpServers": {"a": {"command": "x"}}}`, schemaMCPServers},
		{"mcp.servers is a string", `{"mcp": {"servers": "x"}, "servers": {"a": {"command": "x"}}}`, schemaServers},
		{"servers is a string", `{"servers": "nope", "mcpServers": {"a": {"command": "x"}}}`, schemaMCPServers},
		{"customizations is a list", `{"customizations": [], "mcpServers": {"a": {"command": "x"}}}`, schemaMCPServers},
		{"vscode is a string", `{"customizations": {"vscode": "x"}, "servers": [{"name": "a", "command": "x"}]}`, schemaServers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseDocument([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, doc.kind)
			servers, err := doc.normalize()
			require.NoError(t, err)
			require.Len(t, servers, 1)
			assert.Equal(t, "a", servers[0].Name)
		})
	}
}

func TestParseDocument_NoUsableShape(t *testing.T) {
	for _, doc := range []string{`{"servers": "nope"}`, `{"mcp": true}`, `[1, 2]`} {
		_, err := parseDocument([]byte(doc))
		assert.Error(t, err, doc)
	}
	_, err := parseDocument([]byte(`{"servers": 3}`))
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestTransportOf(t *testing.T) {
	tests := []struct {
		declared string
		command  string
		want     types.Transport
	}{
		{"", "npx", types.TransportStdio},
		{"", "", types.TransportHTTP},
		{"SSE", "", types.TransportHTTP},
		{"streamable-http", "", types.TransportHTTP},
		{"http", "npx", types.TransportHTTP},
		{"stdio", "", types.TransportStdio},
		{"carrier-pigeon", "npx", types.TransportStdio},
	}
	for _, tt := range tests {
		t.Run(tt.declared+"/"+tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, transportOf(tt.declared, tt.command))
		})
	}
}

func TestDeclaration_AlternateURLKeys(t *testing.T) {
	d := declaration("w", map[string]any{"serverUrl": "https://mcp.windsurf.example/sse", "args": []any{"a", 3.0, nil}})
	assert.Equal(t, "https://mcp.windsurf.example/sse", d.URL)
	assert.Equal(t, types.TransportHTTP, d.Transport)
	assert.Equal(t, []string{"a", "3"}, d.Args)
}
