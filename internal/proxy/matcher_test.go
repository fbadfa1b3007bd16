package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPrefixMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prefix   string
		path     string
		wantRest string
		wantOK   bool
	}{
		{
			name:     "segment below prefix",
			prefix:   "/proxy",
			path:     "/proxy/abc",
			wantRest: "/abc",
			wantOK:   true,
		},
		{
			name:     "nested segments",
			prefix:   "/proxy",
			path:     "/proxy/a/b/c",
			wantRest: "/a/b/c",
			wantOK:   true,
		},
		{
			name:   "bare prefix does not match",
			prefix: "/proxy",
			path:   "/proxy",
		},
		{
			name:   "longer word sharing the prefix",
			prefix: "/proxy",
			path:   "/proxyother",
		},
		{
			name:   "longer word with segments",
			prefix: "/proxy",
			path:   "/proxyother/abc",
		},
		{
			name:   "different path",
			prefix: "/proxy",
			path:   "/api/things",
		},
		{
			name:     "trailing empty segment",
			prefix:   "/proxy",
			path:     "/proxy/",
			wantRest: "/",
			wantOK:   true,
		},
		{
			name:   "prefix is not anchored to the end",
			prefix: "/a/b",
			path:   "/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewPrefixMatcher(tt.prefix)
			rest, ok := m.Match(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestPrefixMatcherMetadata(t *testing.T) {
	t.Parallel()

	m := NewPrefixMatcher("/proxy")
	assert.Equal(t, "prefix", m.Type())
	assert.Equal(t, "/proxy", m.Pattern())
}

func TestPrefixMatcherSegmentBoundaryProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		prefix := "/" + rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "prefix")
		suffix := rapid.StringMatching(`[a-z0-9/]{0,20}`).Draw(rt, "suffix")
		m := NewPrefixMatcher(prefix)

		// A slash after the prefix always matches and the remainder
		// starts at that slash.
		rest, ok := m.Match(prefix + "/" + suffix)
		assert.True(rt, ok)
		assert.Equal(rt, "/"+suffix, rest)

		// The bare prefix never matches.
		_, ok = m.Match(prefix)
		assert.False(rt, ok)

		// Growing the last segment never matches.
		extra := rapid.StringMatching(`[a-z]{1,5}`).Draw(rt, "extra")
		_, ok = m.Match(prefix + extra)
		assert.False(rt, ok)
	})
}

func TestPatternMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		path     string
		wantRest string
		wantOK   bool
	}{
		{
			name:     "literal pattern",
			pattern:  "/api",
			path:     "/api/things",
			wantRest: "/things",
			wantOK:   true,
		},
		{
			name:     "character class",
			pattern:  "/api/v[0-9]+",
			path:     "/api/v2/users",
			wantRest: "/users",
			wantOK:   true,
		},
		{
			name:     "match consumes the whole path",
			pattern:  "/api/v[0-9]+",
			path:     "/api/v42",
			wantRest: "",
			wantOK:   true,
		},
		{
			name:    "anchored to the start",
			pattern: "/api",
			path:    "/v2/api/things",
		},
		{
			name:    "no match",
			pattern: "/api/v[0-9]+",
			path:    "/api/vx",
		},
		{
			name:     "already anchored pattern",
			pattern:  "^/api",
			path:     "/api/things",
			wantRest: "/things",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewPatternMatcher(tt.pattern)
			require.NoError(t, err)

			rest, ok := m.Match(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestPatternMatcherInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := NewPatternMatcher("/api/(unclosed")
	assert.Error(t, err)
}

func TestPatternMatcherMetadata(t *testing.T) {
	t.Parallel()

	m, err := NewPatternMatcher("/api/v[0-9]+")
	require.NoError(t, err)
	assert.Equal(t, "pattern", m.Type())
	assert.Equal(t, "/api/v[0-9]+", m.Pattern())
}
