package fingerprint

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Flags that consume the following token, per launcher family.
var (
	npxValueFlags    = map[string]bool{"-p": true, "--package": true, "-c": true, "--call": true, "--registry": true, "--cache": true}
	uvValueFlags     = map[string]bool{"--with": true, "--from": true, "--python": true, "-p": true, "--directory": true, "--project": true, "--with-requirements": true, "--env-file": true, "--index-url": true, "--spec": true}
	pythonValueFlags = map[string]bool{"-X": true, "-W": true, "-Q": true}
	nodeValueFlags   = map[string]bool{"-r": true, "--require": true, "--loader": true, "--import": true, "--experimental-loader": true, "--env-file": true, "--max-old-space-size": true}

	pythonRe = regexp.MustCompile(`^python(?:\d+(?:\.\d+)?)?w?$`)
)

// ExtractLaunch splits a raw command line and strips common launchers
// (npx, npm exec, uv run, uvx, pip run, pipx run, python, node) so the
// returned command is the script, module or package actually being run.
func ExtractLaunch(cmdline string) (string, []string) {
	tokens := SplitCommandLine(UnwrapShell(cmdline))
	if len(tokens) == 0 {
		return "", nil
	}

	start := -1
	switch name := launcherName(tokens[0]); {
	case name == "npx" || name == "bunx" || name == "pnpx":
		start = skipFlags(tokens, 1, npxValueFlags)
	case (name == "npm" || name == "pnpm") && at(tokens, 1) == "exec":
		start = skipFlags(tokens, 2, npxValueFlags)
	case name == "uv" && at(tokens, 1) == "run":
		start = skipFlags(tokens, 2, uvValueFlags)
	case name == "uvx":
		start = skipFlags(tokens, 1, uvValueFlags)
	case (name == "pip" || name == "pip3" || name == "pipx") && at(tokens, 1) == "run":
		start = skipFlags(tokens, 2, uvValueFlags)
	case pythonRe.MatchString(name):
		for i := 1; i < len(tokens); i++ {
			t := tokens[i]
			if t == "-m" {
				if i+1 < len(tokens) {
					return tokens[i+1], tokens[i+2:]
				}
				break
			}
			if pythonValueFlags[t] {
				i++
				continue
			}
			if strings.HasPrefix(t, "-") {
				continue
			}
			start = i
			break
		}
	case name == "node" || name == "nodejs":
		start = skipFlags(tokens, 1, nodeValueFlags)
	}

	if start < 0 || start >= len(tokens) {
		return tokens[0], tokens[1:]
	}
	return tokens[start], tokens[start+1:]
}

// skipFlags returns the index of the first positional token at or after i.
func skipFlags(tokens []string, i int, valueFlags map[string]bool) int {
	for i < len(tokens) {
		t := tokens[i]
		switch {
		case t == "--":
			return i + 1
		case valueFlags[t]:
			i += 2
		case strings.HasPrefix(t, "-"):
			i++
		default:
			return i
		}
	}
	return -1
}

func at(tokens []string, i int) string {
	if i < len(tokens) {
		return strings.ToLower(tokens[i])
	}
	return ""
}

// launcherName reduces "/usr/local/bin/Node.exe" to "node".
func launcherName(tok string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(tok, `\`, "/")))
	for _, ext := range []string{".exe", ".cmd", ".bat"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// SplitCommandLine tokenizes a command line. POSIX command lines honour
// quotes and escapes; lines containing backslashes are treated as Windows
// command lines where backslash is a path separator.
func SplitCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, `\`) {
		return splitWindows(s)
	}
	tokens, err := shlex.Split(s)
	if err != nil || len(tokens) == 0 {
		return strings.Fields(s)
	}
	return tokens
}

func splitWindows(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}
