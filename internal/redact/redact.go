// Package redact strips credentials and tokens from command lines and
// parsed MCP server declarations before they are persisted.
package redact

import (
	"regexp"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "[REDACTED]"

// SensitiveKeywords are matched case-insensitively against keys.
var SensitiveKeywords = []string{"token", "key", "auth", "secret", "password", "credential"}

// Rule is a single text substitution. Replacement may reference groups of
// Pattern; the mask is appended after the groups.
type Rule struct {
	Name    string
	Pattern string
	Keep    string
}

// DefaultRules are applied in order by Redact.
var DefaultRules = []Rule{
	{
		Name:    "url-query",
		Pattern: `(?i)([?&][^=&\s#"']*(?:token|key|auth|secret|password|credential)[^=&\s#"']*=)[^&\s#"']*`,
		Keep:    "${1}",
	},
	{
		Name:    "authorization-header",
		Pattern: `(?i)(authorization["']?\s*[:=]\s*["']?(?:(?:bearer|basic|token)\s+)?)[^\s"',\[]+`,
		Keep:    "${1}",
	},
	{
		Name:    "bearer",
		Pattern: `(?i)(\bbearer\s+)[A-Za-z0-9\-._~+/]+=*`,
		Keep:    "${1}",
	},
	{
		Name:    "cli-flag",
		Pattern: `(?i)(--(?:api[-_]?key|token|auth|secret|password)(?:=|\s+))("[^"]*"|'[^']*'|[^\s"'\[]+)`,
		Keep:    "${1}",
	},
	{
		Name:    "env-assignment",
		Pattern: `(?i)(\b[A-Z0-9_]*(?:TOKEN|KEY|AUTH|SECRET|PASSWORD|CREDENTIAL)[A-Z0-9_]*=)("[^"]*"|'[^']*'|[^\s"'&\[]+)`,
		Keep:    "${1}",
	},
	{
		Name:    "github-token",
		Pattern: `\bgh[ps]_[A-Za-z0-9]{36,}`,
	},
	{
		Name:    "github-pat",
		Pattern: `\bgithub_pat_[A-Za-z0-9_]{22,}`,
	},
	{
		Name:    "openai-style-key",
		Pattern: `\bsk-[A-Za-z0-9_\-]{20,}`,
	},
	{
		Name:    "slack-token",
		Pattern: `\bxox[abposr]-[A-Za-z0-9\-]{10,}`,
	},
	{
		Name:    "aws-access-key",
		Pattern: `\bAKIA[0-9A-Z]{16}\b`,
	},
}

var (
	// Candidate tokens for the standalone base64 check.
	tokenRe = regexp.MustCompile(`[^\s"',;&=]+`)
	// A standalone run must start with an alphanumeric so absolute paths
	// are left alone.
	base64Re = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+/_\-]{29,}={0,2}$`)
)

type compiledRule struct {
	re   *regexp.Regexp
	keep string
}

// Redactor applies an ordered rule table to free text and config values.
type Redactor struct {
	rules []compiledRule
}

// New compiles rules. Rules that fail to compile are skipped.
func New(rules []Rule) *Redactor {
	r := &Redactor{}
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			continue
		}
		r.rules = append(r.rules, compiledRule{re: re, keep: rule.Keep})
	}
	return r
}

var defaultRedactor = New(DefaultRules)

// Redact masks credentials in text using the default rules.
func Redact(text string) string {
	return defaultRedactor.Redact(text)
}

// RedactConfig returns a redacted deep copy of v using the default rules.
func RedactConfig(v any) any {
	return defaultRedactor.RedactConfig(v)
}

// Redact masks credentials in text. Text without matches is returned unchanged.
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, rule := range r.rules {
		out = rule.re.ReplaceAllString(out, rule.keep+Mask)
	}
	return tokenRe.ReplaceAllStringFunc(out, func(tok string) string {
		if base64Re.MatchString(tok) && !isAllLetters(tok) {
			return Mask
		}
		return tok
	})
}

// RedactConfig walks nested maps and slices and returns a copy in which
// sensitive keys are masked regardless of their value type. The input is
// never mutated.
func (r *Redactor) RedactConfig(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if IsSensitiveKey(k) {
				out[k] = Mask
				continue
			}
			out[k] = r.RedactConfig(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = r.RedactConfig(child)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = r.RedactConfig(s)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			if IsSensitiveKey(k) {
				out[k] = Mask
				continue
			}
			out[k] = r.RedactConfig(s)
		}
		return out
	case string:
		if strings.Contains(val, "?") {
			return r.Redact(val)
		}
		return val
	default:
		return v
	}
}

// IsSensitiveKey reports whether a config key names a credential.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if k == "authorization" {
		return true
	}
	for _, kw := range SensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// Pure words (package names, long identifiers) are not secrets.
func isAllLetters(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
