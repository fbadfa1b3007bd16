package proxy

import (
	"regexp"
	"strings"
)

// Matcher decides whether a path is relayed and which part of it is
// forwarded to the remote origin.
type Matcher interface {
	// Match returns the path remainder to append to the remote origin
	// and whether the path matched at all.
	Match(path string) (rest string, ok bool)
	Type() string
	Pattern() string
}

// PrefixMatcher matches a literal path prefix up to a segment
// boundary.
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher creates a matcher for the given literal prefix.
func NewPrefixMatcher(prefix string) *PrefixMatcher {
	return &PrefixMatcher{prefix: prefix}
}

// Match requires a further path segment after the prefix: the bare
// prefix does not match, and neither does a longer first segment that
// merely shares its spelling.
func (m *PrefixMatcher) Match(path string) (string, bool) {
	if !strings.HasPrefix(path, m.prefix+"/") {
		return "", false
	}
	return path[len(m.prefix):], true
}

// Type returns the matcher type.
func (m *PrefixMatcher) Type() string {
	return "prefix"
}

// Pattern returns the configured prefix.
func (m *PrefixMatcher) Pattern() string {
	return m.prefix
}

// PatternMatcher matches the start of a path against a regular
// expression.
type PatternMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// NewPatternMatcher compiles expr anchored to the start of the path.
func NewPatternMatcher(expr string) (*PatternMatcher, error) {
	regex, err := regexp.Compile("^" + expr)
	if err != nil {
		return nil, err
	}
	return &PatternMatcher{pattern: expr, regex: regex}, nil
}

// Match returns everything after the matched portion of the path.
func (m *PatternMatcher) Match(path string) (string, bool) {
	loc := m.regex.FindStringIndex(path)
	if loc == nil {
		return "", false
	}
	return path[loc[1]:], true
}

// Type returns the matcher type.
func (m *PatternMatcher) Type() string {
	return "pattern"
}

// Pattern returns the expression as configured, without the anchor.
func (m *PatternMatcher) Pattern() string {
	return m.pattern
}
