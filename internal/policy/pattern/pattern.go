// Package pattern compiles the matchers used to classify processes by name
// or command line. A pattern is a glob (when it contains *, ? or [...]), a
// regex (re: prefix) or a literal. Class references (@ prefix) are only
// meaningful inside a ClassRegistry table, which expands them before
// compiling.
package pattern

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"

	"github.com/gobwas/glob"
)

// PatternType indicates the type of pattern.
type PatternType int

const (
	PatternTypeGlob PatternType = iota
	PatternTypeRegex
	PatternTypeLiteral
)

func (t PatternType) String() string {
	switch t {
	case PatternTypeGlob:
		return "glob"
	case PatternTypeRegex:
		return "regex"
	case PatternTypeLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Pattern is a compiled matcher.
type Pattern struct {
	Raw  string
	Type PatternType

	literal string
	glob    glob.Glob
	re      *regexp.Regexp
	fold    bool
}

// CompileOptions configures pattern compilation.
type CompileOptions struct {
	// MaxRegexComplexity limits regex complexity; 0 means 1000.
	MaxRegexComplexity int

	// CaseInsensitive lowercases glob and literal patterns and their input,
	// and adds (?i) to regexes.
	CaseInsensitive bool
}

// DefaultCompileOptions returns default compilation options.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{MaxRegexComplexity: 1000}
}

// Compile compiles a pattern string with default options.
func Compile(s string) (*Pattern, error) {
	return CompileWithOptions(s, DefaultCompileOptions())
}

// CompileWithOptions compiles a pattern with custom options.
func CompileWithOptions(s string, opts CompileOptions) (*Pattern, error) {
	if s == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	switch {
	case strings.HasPrefix(s, "re:"):
		return compileRegex(s, opts)
	case strings.HasPrefix(s, "@"):
		return nil, fmt.Errorf("class reference %q outside a class table", s)
	case isGlobPattern(s):
		return compileGlob(s, opts)
	}
	lit := s
	if opts.CaseInsensitive {
		lit = strings.ToLower(s)
	}
	return &Pattern{Raw: s, Type: PatternTypeLiteral, literal: lit, fold: opts.CaseInsensitive}, nil
}

func compileRegex(s string, opts CompileOptions) (*Pattern, error) {
	expr := strings.TrimPrefix(s, "re:")
	if expr == "" {
		return nil, fmt.Errorf("empty regex pattern")
	}
	if err := checkRegexComplexity(expr, opts.MaxRegexComplexity); err != nil {
		return nil, fmt.Errorf("regex complexity check failed: %w", err)
	}
	if opts.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return &Pattern{Raw: s, Type: PatternTypeRegex, re: re}, nil
}

func compileGlob(s string, opts CompileOptions) (*Pattern, error) {
	src := s
	if opts.CaseInsensitive {
		src = strings.ToLower(s)
	}
	g, err := glob.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	return &Pattern{Raw: s, Type: PatternTypeGlob, glob: g, fold: opts.CaseInsensitive}, nil
}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// checkRegexComplexity rejects expressions prone to catastrophic
// backtracking, such as nested unbounded quantifiers.
func checkRegexComplexity(pattern string, maxComplexity int) error {
	if maxComplexity == 0 {
		maxComplexity = 1000
	}
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return fmt.Errorf("failed to parse regex: %w", err)
	}
	if c := complexity(re); c > maxComplexity {
		return fmt.Errorf("regex complexity %d exceeds maximum %d", c, maxComplexity)
	}
	return nil
}

func complexity(re *syntax.Regexp) int {
	sub := 0
	for _, s := range re.Sub {
		sub += complexity(s)
	}
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		if sub > 1 {
			return sub * 100
		}
		return sub + 10
	case syntax.OpQuest:
		return sub + 2
	case syntax.OpRepeat:
		max := re.Max
		if max < 0 {
			max = 100
		}
		return sub * max / 10
	case syntax.OpConcat:
		return sub
	case syntax.OpAlternate:
		return sub * 2
	case syntax.OpCapture:
		return sub + 1
	default:
		return 1
	}
}

// Match reports whether s matches.
func (p *Pattern) Match(s string) bool {
	if p.fold {
		s = strings.ToLower(s)
	}
	switch p.Type {
	case PatternTypeLiteral:
		return s == p.literal
	case PatternTypeGlob:
		return p.glob.Match(s)
	case PatternTypeRegex:
		return p.re.MatchString(s)
	}
	return false
}

func (p *Pattern) String() string { return p.Raw }

// PatternSet is an immutable list of patterns matched together.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet compiles patterns with default options.
func NewPatternSet(patterns []string) (*PatternSet, error) {
	return NewPatternSetWithOptions(patterns, DefaultCompileOptions())
}

// NewPatternSetWithOptions compiles patterns with opts.
func NewPatternSetWithOptions(patterns []string, opts CompileOptions) (*PatternSet, error) {
	ps := &PatternSet{patterns: make([]*Pattern, 0, len(patterns))}
	for _, raw := range patterns {
		p, err := CompileWithOptions(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", raw, err)
		}
		ps.patterns = append(ps.patterns, p)
	}
	return ps, nil
}

// MatchAny reports whether any pattern matches s.
func (ps *PatternSet) MatchAny(s string) bool {
	_, ok := ps.FirstMatch(s)
	return ok
}

// FirstMatch returns the first pattern matching s.
func (ps *PatternSet) FirstMatch(s string) (*Pattern, bool) {
	for _, p := range ps.patterns {
		if p.Match(s) {
			return p, true
		}
	}
	return nil, false
}

func (ps *PatternSet) Len() int { return len(ps.patterns) }
