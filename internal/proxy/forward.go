package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/propagation"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// hopHeaders are connection-level headers that are never relayed in
// either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays requests matched by its rule to the rule's remote
// origin, preserving method, headers and body, and hands everything
// else to the rest of the pipeline.
type Forwarder struct {
	rule      Rule
	matcher   Matcher
	origin    *url.URL
	client    *http.Client
	transport http.RoundTripper
	logger    observability.Logger
	metrics   *observability.Metrics
}

// ForwarderOption is a functional option for configuring the
// forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger for the forwarder.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithForwarderMetrics records relay outcomes on the given metrics.
func WithForwarderMetrics(metrics *observability.Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithForwarderTransport sets the base transport used for relayed
// requests.
func WithForwarderTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// NewForwarder compiles the rule and builds its relay client.
func NewForwarder(rule Rule, opts ...ForwarderOption) (*Forwarder, error) {
	matcher, err := rule.matcher()
	if err != nil {
		return nil, err
	}
	origin, err := rule.origin()
	if err != nil {
		return nil, err
	}

	f := &Forwarder{
		rule:    rule,
		matcher: matcher,
		origin:  origin,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = newRelayClient(rule, f.transport, f.logger, f.recordBreakerState)
	return f, nil
}

// Rule returns the forwarder's rule.
func (f *Forwarder) Rule() Rule {
	return f.rule
}

func (f *Forwarder) recordBreakerState(rule string, state int) {
	if f.metrics != nil {
		f.metrics.SetBreakerState(rule, state)
	}
}

// Middleware returns a pipeline middleware that relays matching
// requests and passes non-matching ones through, including results the
// rest of the pipeline declines to produce.
func (f *Forwarder) Middleware() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			rest, ok := f.matcher.Match(req.Path)
			if !ok {
				return next(ctx, req)
			}
			return f.relay(ctx, req, rest)
		}
	}
}

// relay forwards the request to the remote origin and returns the
// remote response. Transport failures are raised to the caller rather
// than translated here.
func (f *Forwarder) relay(ctx context.Context, req *pipeline.Request, rest string) (*pipeline.Response, error) {
	target := f.rule.Origin + rest
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	out, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, NewRelayError("build_request", f.rule.Name, target, "building relay request", err)
	}

	f.prepareHeaders(out, req)
	observability.InjectTraceContext(ctx, propagation.HeaderCarrier(out.Header))

	f.logger.WithContext(ctx).Debug("relaying request",
		observability.String("rule", f.rule.Name),
		observability.String("method", req.Method),
		observability.String("target", target),
	)

	resp, err := f.client.Do(out)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordRelayFailure(f.rule.Name)
		}
		f.logger.WithContext(ctx).Error("relay failed",
			observability.String("rule", f.rule.Name),
			observability.String("target", target),
			observability.Error(err),
		)
		return nil, NewRelayError("relay", f.rule.Name, target, "relaying request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordRelayFailure(f.rule.Name)
		}
		return nil, NewRelayError("read_response", f.rule.Name, target, "reading remote response", err)
	}

	if f.metrics != nil {
		f.metrics.RecordRelay(f.rule.Name, resp.StatusCode)
	}

	result := &pipeline.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}
	for _, h := range hopHeaders {
		result.Header.Del(h)
	}
	return result, nil
}

// prepareHeaders copies the inbound headers onto the relayed request,
// drops hop-by-hop headers, applies the rule's extra headers and
// records the forwarding chain.
func (f *Forwarder) prepareHeaders(out *http.Request, req *pipeline.Request) {
	if req.Header != nil {
		out.Header = req.Header.Clone()
	}
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	for key, value := range f.rule.Headers {
		out.Header.Set(key, value)
	}

	if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		out.Header.Set("X-Forwarded-For", clientIP)
	}

	if req.TLS {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}

	if req.Host != "" {
		out.Header.Set("X-Forwarded-Host", req.Host)
	}
}
