package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// TypeRateLimitExceeded is the error envelope type for throttled
// requests.
const TypeRateLimitExceeded = "rate-limit-exceeded"

// Rate limiter default configuration constants.
const (
	// DefaultClientTTL is the default TTL for per-client limiter
	// entries.
	DefaultClientTTL = 10 * time.Minute

	// MinCleanupInterval is the minimum interval between cleanup runs.
	MinCleanupInterval = 10 * time.Second

	// MaxCleanupInterval is the maximum interval between cleanup runs.
	MaxCleanupInterval = time.Minute
)

// clientEntry holds a per-client limiter and its last access time for
// TTL-based cleanup.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests with a token bucket, either globally
// or per client IP.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	mu        sync.Mutex
	rps       int
	burst     int
	logger    observability.Logger
	metrics   *observability.Metrics
	extractor *ClientIPExtractor
	clientTTL time.Duration
	stopCh    chan struct{}
	stopped   bool
}

// RateLimiterOption is a functional option for configuring the rate
// limiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger for the rate limiter.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithRateLimiterMetrics records throttled requests on the given
// metrics.
func WithRateLimiterMetrics(metrics *observability.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.metrics = metrics
	}
}

// WithRateLimiterExtractor sets the client IP extractor used to key
// per-client limiters.
func WithRateLimiterExtractor(extractor *ClientIPExtractor) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.extractor = extractor
	}
}

// WithRateLimiterClientTTL sets the TTL for per-client limiter
// entries.
func WithRateLimiterClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.clientTTL = ttl
	}
}

// NewRateLimiter creates a rate limiter allowing rps requests per
// second with the given burst. With perClient each client IP gets its
// own bucket.
func NewRateLimiter(rps, burst int, perClient bool, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		logger:    observability.NopLogger(),
		extractor: NewClientIPExtractor(nil),
		clientTTL: DefaultClientTTL,
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Allow reports whether a request from the given client may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if rl.perClient {
		return rl.allowPerClient(clientIP)
	}
	return rl.limiter.Allow()
}

// allowPerClient looks up or creates the client's limiter inside a
// single critical section so the existence check and the lastAccess
// update cannot race.
func (rl *RateLimiter) allowPerClient(clientIP string) bool {
	now := time.Now()

	rl.mu.Lock()
	entry, exists := rl.clients[clientIP]
	if !exists {
		entry = &clientEntry{
			limiter:    rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
			lastAccess: now,
		}
		rl.clients[clientIP] = entry
	} else {
		entry.lastAccess = now
	}
	limiter := entry.limiter
	rl.mu.Unlock()

	// Allow is safe on the limiter without holding rl.mu.
	return limiter.Allow()
}

// Middleware returns a pipeline middleware that rejects throttled
// requests with 429 before the rest of the pipeline runs.
func (rl *RateLimiter) Middleware(enc respond.Encoding) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			clientIP := rl.extractor.Extract(req)

			if !rl.Allow(clientIP) {
				rl.logger.WithContext(ctx).Warn("rate limit exceeded",
					observability.String("client_ip", clientIP),
					observability.String("path", req.Path),
				)
				if rl.metrics != nil {
					rl.metrics.RecordRateLimitHit()
				}

				resp := respond.Error(http.StatusTooManyRequests, TypeRateLimitExceeded, "rate limit exceeded", enc)
				resp.Header.Set(HeaderRetryAfter, "1")
				return resp, nil
			}

			return next(ctx, req)
		}
	}
}

// CleanupOldClients removes client limiters that have not been used
// within maxAge.
func (rl *RateLimiter) CleanupOldClients(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	expired := make([]string, 0)

	for clientIP, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			expired = append(expired, clientIP)
		}
	}
	for _, clientIP := range expired {
		delete(rl.clients, clientIP)
	}

	if len(expired) > 0 {
		rl.logger.Debug("cleaned up expired rate limiter entries",
			observability.Int("removed", len(expired)),
			observability.Int("remaining", len(rl.clients)),
		)
	}
}

// StartAutoCleanup starts the TTL cleanup goroutine for per-client
// limiters. It runs until Stop is called.
func (rl *RateLimiter) StartAutoCleanup() {
	rl.mu.Lock()
	if rl.stopped {
		rl.mu.Unlock()
		return
	}
	interval := rl.clientTTL / 2
	rl.mu.Unlock()

	if interval > MaxCleanupInterval {
		interval = MaxCleanupInterval
	}
	if interval < MinCleanupInterval {
		interval = MinCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.CleanupOldClients(rl.clientTTL)
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		rl.stopped = true
		close(rl.stopCh)
	}
}
