package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/avarelay/internal/auth"
	"github.com/vyrodovalexey/avarelay/internal/config"
	"github.com/vyrodovalexey/avarelay/internal/httperr"
	"github.com/vyrodovalexey/avarelay/internal/middleware"
	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/proxy"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// Host assembles the middleware chain from configuration and serves
// it through a stable handler. Reload rebuilds the chain from a new
// configuration and swaps it atomically, so in-flight requests finish
// on the chain they started on.
type Host struct {
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	terminal pipeline.Handler

	// transport overrides the relay transport, for tests.
	transport http.RoundTripper

	current atomic.Pointer[pipeline.Handler]

	mu      sync.Mutex
	limiter *middleware.RateLimiter
}

// HostOption is a functional option for configuring the host.
type HostOption func(*Host)

// WithHostLogger sets the logger for the host and its chain.
func WithHostLogger(logger observability.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithHostMetrics records pipeline and relay metrics.
func WithHostMetrics(metrics *observability.Metrics) HostOption {
	return func(h *Host) {
		h.metrics = metrics
	}
}

// WithHostTracer opens a server span per request.
func WithHostTracer(tracer *observability.Tracer) HostOption {
	return func(h *Host) {
		h.tracer = tracer
	}
}

// WithTerminal sets the application handler running below every rule.
// The default terminal declines, leaving unmatched requests to the
// adapter's 404 boundary.
func WithTerminal(terminal pipeline.Handler) HostOption {
	return func(h *Host) {
		h.terminal = terminal
	}
}

// WithHostTransport sets the base transport for relayed requests.
func WithHostTransport(transport http.RoundTripper) HostOption {
	return func(h *Host) {
		h.transport = transport
	}
}

// NewHost builds the initial chain from cfg.
func NewHost(cfg *config.RelayConfig, opts ...HostOption) (*Host, error) {
	h := &Host{
		logger: observability.NopLogger(),
		terminal: func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
			return nil, nil
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.Reload(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

// Handler returns the stable pipeline handler. The returned function
// always dispatches to the most recently loaded chain.
func (h *Host) Handler() pipeline.Handler {
	return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		return (*h.current.Load())(ctx, req)
	}
}

// Reload rebuilds the chain from cfg and swaps it in. On error the
// running chain stays untouched.
func (h *Host) Reload(cfg *config.RelayConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	chain, limiter, err := h.build(cfg)
	if err != nil {
		return err
	}

	h.current.Store(&chain)

	if h.limiter != nil {
		h.limiter.Stop()
	}
	h.limiter = limiter

	h.logger.Info("pipeline assembled",
		observability.String("encoding", string(cfg.Spec.ResponseEncoding())),
		observability.Int("rules", len(cfg.Spec.Rules)),
	)

	return nil
}

// Close releases background resources held by the current chain.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limiter != nil {
		h.limiter.Stop()
		h.limiter = nil
	}
}

// build assembles one complete chain: classification outermost, then
// diagnostics, admission, cookie handling, identity, response
// headers, and the relay rules right above the terminal handler.
func (h *Host) build(cfg *config.RelayConfig) (pipeline.Handler, *middleware.RateLimiter, error) {
	enc := cfg.Spec.ResponseEncoding()

	mws := []pipeline.Middleware{
		httperr.Classifier(enc, h.logger),
		middleware.TraceRequest(h.logger),
		middleware.TraceResponse(h.logger),
		middleware.RequestID(),
	}

	if h.tracer != nil {
		mws = append(mws, observability.TracingMiddleware(h.tracer))
	}
	if h.metrics != nil {
		mws = append(mws, observability.MetricsMiddleware(h.metrics))
	}

	limiter := h.buildRateLimiter(cfg, enc, &mws)

	mws = append(mws,
		middleware.Timeout(cfg.Spec.EffectiveRequestTimeout(), enc, h.logger),
		proxy.Cookies(),
		middleware.CertificateCommonName(),
	)

	if err := h.appendAuth(cfg, enc, &mws); err != nil {
		if limiter != nil {
			limiter.Stop()
		}
		return nil, nil, err
	}

	mws = append(mws,
		middleware.CacheControl(),
		middleware.FrameOptionsDeny(),
	)

	if err := h.appendForwarders(cfg, &mws); err != nil {
		if limiter != nil {
			limiter.Stop()
		}
		return nil, nil, err
	}

	return pipeline.Chain(h.terminal, mws...), limiter, nil
}

// buildRateLimiter constructs the configured rate limiter and appends
// its middleware, returning nil when rate limiting is disabled.
func (h *Host) buildRateLimiter(
	cfg *config.RelayConfig,
	enc respond.Encoding,
	mws *[]pipeline.Middleware,
) *middleware.RateLimiter {
	rl := cfg.Spec.RateLimit
	if rl == nil || !rl.Enabled {
		return nil
	}

	opts := []middleware.RateLimiterOption{
		middleware.WithRateLimiterLogger(h.logger),
	}
	if h.metrics != nil {
		opts = append(opts, middleware.WithRateLimiterMetrics(h.metrics))
	}
	if rl.ClientTTL > 0 {
		opts = append(opts, middleware.WithRateLimiterClientTTL(rl.ClientTTL.Duration()))
	}
	if len(rl.TrustedProxies) > 0 {
		opts = append(opts, middleware.WithRateLimiterExtractor(
			middleware.NewClientIPExtractor(rl.TrustedProxies)))
	}

	limiter := middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.PerClient, opts...)
	if rl.PerClient {
		limiter.StartAutoCleanup()
	}

	*mws = append(*mws, limiter.Middleware(enc))
	return limiter
}

// appendAuth appends the configured authentication middlewares.
func (h *Host) appendAuth(cfg *config.RelayConfig, enc respond.Encoding, mws *[]pipeline.Middleware) error {
	ac := cfg.Spec.Auth
	if ac == nil {
		return nil
	}

	if ac.ClientCertificate {
		*mws = append(*mws, auth.ClientCertificate())
	}

	if bc := ac.Bearer; bc != nil && bc.Enabled {
		var opts []auth.BearerOption
		opts = append(opts, auth.WithBearerLogger(h.logger))
		if bc.Issuer != "" {
			opts = append(opts, auth.WithBearerIssuer(bc.Issuer))
		}
		if bc.Audience != "" {
			opts = append(opts, auth.WithBearerAudience(bc.Audience))
		}

		verifier, err := auth.NewBearerVerifierFromFile(bc.JWKSFile, enc, opts...)
		if err != nil {
			return fmt.Errorf("building bearer verifier: %w", err)
		}
		*mws = append(*mws, verifier.Middleware())
	}

	return nil
}

// appendForwarders compiles every rule into a forwarder middleware,
// in configuration order.
func (h *Host) appendForwarders(cfg *config.RelayConfig, mws *[]pipeline.Middleware) error {
	for _, rc := range cfg.Spec.Rules {
		opts := []proxy.ForwarderOption{
			proxy.WithForwarderLogger(h.logger),
		}
		if h.metrics != nil {
			opts = append(opts, proxy.WithForwarderMetrics(h.metrics))
		}
		if h.transport != nil {
			opts = append(opts, proxy.WithForwarderTransport(h.transport))
		}

		forwarder, err := proxy.NewForwarder(ruleFromConfig(rc), opts...)
		if err != nil {
			return fmt.Errorf("building forwarder: %w", err)
		}

		*mws = append(*mws, forwarder.Middleware())
	}

	return nil
}

// ruleFromConfig maps a configured rule onto the proxy rule.
func ruleFromConfig(rc config.RuleConfig) proxy.Rule {
	rule := proxy.Rule{
		Name:            rc.Name,
		Prefix:          rc.Prefix,
		Pattern:         rc.Pattern,
		Origin:          rc.Origin,
		Timeout:         rc.Timeout.Duration(),
		FollowRedirects: rc.FollowRedirects,
		Headers:         rc.Headers,
	}

	if cb := rc.CircuitBreaker; cb != nil {
		rule.Breaker = proxy.BreakerConfig{
			Enabled:     cb.Enabled,
			MaxRequests: cb.MaxRequests,
			Interval:    cb.Interval.Duration(),
			Timeout:     cb.Timeout.Duration(),
			MinRequests: cb.MinRequests,
		}
	}

	return rule
}
