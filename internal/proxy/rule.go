package proxy

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultRelayTimeout bounds a relayed request when the rule does not
// set its own timeout.
const DefaultRelayTimeout = 30 * time.Second

// BreakerConfig configures the optional per-rule circuit breaker.
type BreakerConfig struct {
	Enabled     bool
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
}

// Rule describes one relay target: which paths it claims and where
// and how they are forwarded. Exactly one of Prefix and Pattern must
// be set.
type Rule struct {
	// Name identifies the rule in logs and metrics.
	Name string

	// Prefix relays paths with a further segment after this literal
	// prefix.
	Prefix string

	// Pattern relays paths whose start matches this regular
	// expression.
	Pattern string

	// Origin is the remote origin requests are relayed to, e.g.
	// "https://backend.internal:8443".
	Origin string

	// Timeout bounds the whole relayed exchange. Zero means
	// DefaultRelayTimeout.
	Timeout time.Duration

	// FollowRedirects makes the relay follow upstream redirects
	// instead of returning them to the client.
	FollowRedirects bool

	// Headers are set on every relayed request.
	Headers map[string]string

	// Breaker optionally short-circuits a failing origin.
	Breaker BreakerConfig
}

// matcher compiles the rule's path matcher.
func (r Rule) matcher() (Matcher, error) {
	switch {
	case r.Prefix != "" && r.Pattern != "":
		return nil, fmt.Errorf("rule %s: %w", r.Name, ErrAmbiguousMatcher)
	case r.Prefix != "":
		return NewPrefixMatcher(r.Prefix), nil
	case r.Pattern != "":
		m, err := NewPatternMatcher(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: compiling pattern %q: %w", r.Name, r.Pattern, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("rule %s: %w", r.Name, ErrNoMatcher)
	}
}

// origin parses and validates the rule's remote origin.
func (r Rule) origin() (*url.URL, error) {
	u, err := url.Parse(r.Origin)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w: %v", r.Name, ErrInvalidOrigin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rule %s: %w: unsupported scheme %q", r.Name, ErrInvalidOrigin, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("rule %s: %w: missing host", r.Name, ErrInvalidOrigin)
	}
	return u, nil
}

// timeout returns the effective relay timeout for the rule.
func (r Rule) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultRelayTimeout
}
