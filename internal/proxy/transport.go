package proxy

import (
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vyrodovalexey/avarelay/internal/observability"
)

// DefaultBreakerMinRequests is the minimum number of observed requests
// before the failure ratio can trip the breaker.
const DefaultBreakerMinRequests = 5

// BreakerStateFunc is called when a rule's circuit breaker changes
// state (0=closed, 1=half-open, 2=open).
type BreakerStateFunc func(rule string, state int)

// newRelayClient builds the HTTP client for one rule: request timeout,
// redirect policy, trace propagation on the transport and the optional
// circuit breaker.
func newRelayClient(
	rule Rule,
	base http.RoundTripper,
	logger observability.Logger,
	onBreakerState BreakerStateFunc,
) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	if rule.Breaker.Enabled {
		rt = &breakerTransport{
			next:    rt,
			breaker: newBreaker(rule, logger, onBreakerState),
		}
	}

	// The otel transport wraps the breaker so rejected attempts still
	// show up as client spans.
	rt = otelhttp.NewTransport(rt)

	client := &http.Client{
		Transport: rt,
		Timeout:   rule.timeout(),
	}
	if !rule.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// newBreaker builds the rule's circuit breaker. The breaker trips once
// at least MinRequests attempts were observed and half of them failed.
func newBreaker(rule Rule, logger observability.Logger, onState BreakerStateFunc) *gobreaker.TwoStepCircuitBreaker {
	minRequests := rule.Breaker.MinRequests
	if minRequests == 0 {
		minRequests = DefaultBreakerMinRequests
	}

	settings := gobreaker.Settings{
		Name:        rule.Name,
		MaxRequests: rule.Breaker.MaxRequests,
		Interval:    rule.Breaker.Interval,
		Timeout:     rule.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				observability.String("rule", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if onState != nil {
				onState(name, int(to))
			}
		},
	}

	return gobreaker.NewTwoStepCircuitBreaker(settings)
}

// breakerTransport guards a transport with a two-step circuit breaker.
// Transport errors and 5xx responses count as failures.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.TwoStepCircuitBreaker
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	done, err := t.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}

	resp, err := t.next.RoundTrip(req)
	done(err == nil && resp.StatusCode < http.StatusInternalServerError)
	return resp, err
}
