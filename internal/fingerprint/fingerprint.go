// Package fingerprint derives stable identities for MCP server declarations
// and running MCP processes, and deduplicates observations by identity.
//
// A fingerprint is the first 16 hex characters of the SHA-256 of a
// normalized record. Volatile inputs (query strings, ports, temp paths,
// ids, launcher wrappers) are normalized away so the same server yields the
// same fingerprint across scans and hosts.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/agentsh/mcpscope/pkg/types"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

// record fields are declared in lexicographic key order so the JSON
// encoding is canonical.
type record struct {
	Args      []string `json:"args"`
	Command   string   `json:"command"`
	Transport string   `json:"transport"`
	URL       string   `json:"url"`
}

// Compute fingerprints an already-split declaration.
func Compute(transport, command, rawURL string, args []string) string {
	r := record{
		Args:      NormalizeArgs(args),
		Command:   NormalizeCommand(command),
		Transport: strings.ToLower(strings.TrimSpace(transport)),
		URL:       NormalizeURL(rawURL),
	}
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:Length]
}

// Server fingerprints a config-declared server.
func Server(s types.ServerDeclaration) string {
	return Compute(string(s.Transport), s.Command, s.URL, s.Args)
}

// Process fingerprints a raw command line after stripping shell wrappers
// and launchers.
func Process(cmdline string) string {
	command, args := ExtractLaunch(cmdline)
	return Compute(string(types.TransportStdio), command, "", args)
}

// Launch fingerprints the process a stdio declaration would spawn, so
// running processes can be matched against declared servers.
func Launch(s types.ServerDeclaration) string {
	parts := append([]string{quoteArg(s.Command)}, quoteArgs(s.Args)...)
	return Process(strings.Join(parts, " "))
}

func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = quoteArg(a)
	}
	return out
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsAny(a, " \t\"'") {
		return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
	}
	return a
}
