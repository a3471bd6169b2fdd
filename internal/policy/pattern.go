package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// regexAnchor marks a pattern as a raw regular expression.
const regexAnchor = "^"

// Pattern is a compiled glob or regex URL pattern.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// CompilePattern compiles a single pattern. Globs are anchored at both
// ends; raw regexes are used as written. Both are case-insensitive.
func CompilePattern(pattern string) (*Pattern, error) {
	re, err := regexp.Compile("(?i)" + patternToRegex(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, re: re}, nil
}

// Match reports whether s matches the pattern.
func (p *Pattern) Match(s string) bool {
	return p.re.MatchString(s)
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}

// PatternSet is an unordered set of patterns; only membership matters.
type PatternSet []*Pattern

// MatchAny reports whether any pattern in the set matches s.
func (ps PatternSet) MatchAny(s string) bool {
	for _, p := range ps {
		if p.Match(s) {
			return true
		}
	}
	return false
}

// compileSet compiles every pattern, collecting errors for the ones that
// fail instead of aborting the whole set.
func compileSet(patterns []string) (PatternSet, []error) {
	var set PatternSet
	var errs []error
	for _, raw := range patterns {
		p, err := CompilePattern(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set = append(set, p)
	}
	return set, errs
}

// patternToRegex converts a glob to an anchored regex: * matches any run,
// ? matches one character, everything else is literal.
func patternToRegex(pattern string) string {
	if strings.HasPrefix(pattern, regexAnchor) {
		return pattern
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return "^" + escaped + "$"
}
