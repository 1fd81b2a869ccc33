package fingerprint

import (
	"net/url"
	"regexp"
	"strings"
)

// maxPasses bounds fixed-point normalization.
const maxPasses = 8

var (
	shellWrappers = []*regexp.Regexp{
		regexp.MustCompile(`(?is)^(?:\S*[/\\])?(?:ba|z|da|k)?sh(?:\.exe)?\s+(?:-[a-z]+\s+)*-[a-z]*c\s+(.+)$`),
		regexp.MustCompile(`(?is)^(?:\S*[/\\])?(?:powershell|pwsh)(?:\.exe)?\s+(?:-[a-z]+(?:\s+[a-z]+)?\s+)*?-(?:c|command)\s+(.+)$`),
		regexp.MustCompile(`(?is)^(?:\S*[/\\])?cmd(?:\.exe)?\s+/[ck]\s+(.+)$`),
	}
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeCommand unwraps shell wrappers, collapses whitespace, strips a
// leading "./" or ".\" and lowercases. It is idempotent.
func NormalizeCommand(cmd string) string {
	cur := cmd
	for i := 0; i < maxPasses; i++ {
		next := normalizeCommandOnce(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

func normalizeCommandOnce(cmd string) string {
	c := strings.TrimSpace(UnwrapShell(cmd))
	c = whitespaceRe.ReplaceAllString(c, " ")
	for strings.HasPrefix(c, "./") || strings.HasPrefix(c, `.\`) {
		c = c[2:]
	}
	return strings.ToLower(c)
}

// UnwrapShell strips `bash -c "..."`, `powershell -Command "..."` and
// `cmd /c "..."` prefixes, repeatedly, exposing the inner command.
func UnwrapShell(cmd string) string {
	cur := strings.TrimSpace(cmd)
	for i := 0; i < maxPasses; i++ {
		inner, ok := unwrapOnce(cur)
		if !ok {
			break
		}
		cur = inner
	}
	return cur
}

func unwrapOnce(cmd string) (string, bool) {
	for _, re := range shellWrappers {
		m := re.FindStringSubmatch(cmd)
		if m == nil {
			continue
		}
		inner := strings.TrimSpace(stripQuotes(strings.TrimSpace(m[1])))
		if inner == "" || inner == cmd {
			return cmd, false
		}
		return inner, true
	}
	return cmd, false
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// NormalizeURL keeps scheme://host/path. Query strings, fragments and
// userinfo never affect identity.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		cut := raw
		if i := strings.IndexAny(cut, "?#"); i >= 0 {
			cut = cut[:i]
		}
		return strings.ToLower(cut)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
}

var dynamicArgPatterns = []*regexp.Regexp{
	// pure integers (ports, pids, counters)
	regexp.MustCompile(`^\d+$`),
	// temp directories
	regexp.MustCompile(`(?i)^(?:/tmp/|/var/tmp/|/var/folders/|/private/var/folders/|/private/tmp/|[a-z]:\\(?:windows\\)?temp\\|[a-z]:\\users\\[^\\]+\\appdata\\local\\temp\\|%temp%|\$tmpdir|\$\{tmpdir\})`),
	// hex ids and uuids
	regexp.MustCompile(`(?i)^[0-9a-f]{8,}$`),
	regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
	// date stamps: 2024-01-31, 20240131, 2024_01_31T10...
	regexp.MustCompile(`(?:19|20)\d{2}[-_.]?(?:0[1-9]|1[0-2])[-_.]?(?:0[1-9]|[12]\d|3[01])`),
}

// base64-looking: 20+ chars, letters and digits both present, no leading slash.
var base64ArgRe = regexp.MustCompile(`^[A-Za-z0-9+][A-Za-z0-9+/]{19,}={0,2}$`)

// IsDynamicArg reports whether an argument likely varies run to run.
func IsDynamicArg(arg string) bool {
	for _, re := range dynamicArgPatterns {
		if re.MatchString(arg) {
			return true
		}
	}
	return base64ArgRe.MatchString(arg) && hasLetter(arg) && hasDigit(arg)
}

// NormalizeArgs trims, lowercases flags and drops empty and dynamic tokens.
// A "--flag=value" token with a dynamic value keeps only the flag.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "-") {
			if k, v, ok := strings.Cut(a, "="); ok {
				k = strings.ToLower(k)
				if v == "" || IsDynamicArg(v) {
					out = append(out, k)
				} else {
					out = append(out, k+"="+v)
				}
				continue
			}
			out = append(out, strings.ToLower(a))
			continue
		}
		if IsDynamicArg(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
	}) >= 0
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}
