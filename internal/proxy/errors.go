// Package proxy relays matched requests to remote origins.
package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for relay rules and transport.
var (
	// ErrNoMatcher indicates that a rule configures neither a prefix
	// nor a pattern.
	ErrNoMatcher = errors.New("rule has no prefix and no pattern")

	// ErrAmbiguousMatcher indicates that a rule configures both a
	// prefix and a pattern.
	ErrAmbiguousMatcher = errors.New("rule has both a prefix and a pattern")

	// ErrInvalidOrigin indicates that the remote origin URL is invalid.
	ErrInvalidOrigin = errors.New("invalid remote origin")

	// ErrBreakerOpen indicates that the rule's circuit breaker
	// rejected the request.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// RelayError carries the context of a failed relay operation.
type RelayError struct {
	Op      string // operation that failed
	Rule    string // rule name, if known
	Target  string // target URL, if known
	Message string // human-readable message
	Cause   error  // underlying error
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	if e.Target != "" {
		return e.formatWithTarget()
	}
	return e.formatBasic()
}

func (e *RelayError) formatWithTarget() string {
	if e.Cause != nil {
		return fmt.Sprintf("relay error [%s] rule=%s target=%s: %s: %v",
			e.Op, e.Rule, e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("relay error [%s] rule=%s target=%s: %s",
		e.Op, e.Rule, e.Target, e.Message)
}

func (e *RelayError) formatBasic() string {
	if e.Cause != nil {
		return fmt.Sprintf("relay error [%s] rule=%s: %s: %v", e.Op, e.Rule, e.Message, e.Cause)
	}
	return fmt.Sprintf("relay error [%s] rule=%s: %s", e.Op, e.Rule, e.Message)
}

// Unwrap returns the underlying error.
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// NewRelayError creates a new RelayError.
func NewRelayError(op, rule, target, message string, cause error) *RelayError {
	return &RelayError{
		Op:      op,
		Rule:    rule,
		Target:  target,
		Message: message,
		Cause:   cause,
	}
}

// IsRelayError checks if an error is a RelayError.
func IsRelayError(err error) bool {
	var relayErr *RelayError
	return errors.As(err, &relayErr)
}
