// Package config loads, validates and watches the relay configuration.
package config

import (
	"time"

	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// Expected values for the configuration envelope.
const (
	// APIVersion is the supported configuration API version.
	APIVersion = "relay.avarelay.io/v1"

	// KindRelay is the supported configuration kind.
	KindRelay = "Relay"
)

// Default server settings.
const (
	DefaultPort               = 8080
	DefaultReadTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultIdleTimeout        = 120 * time.Second
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultMaxHeaderBytes     = 1 << 20
	DefaultMaxRequestBodySize = 10 << 20
	DefaultRequestTimeout     = 60 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// RelayConfig is the root of the relay configuration file.
type RelayConfig struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata identifies the relay instance.
type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Spec holds the relay behavior: the listener, the pipeline knobs and
// the relay rules.
type Spec struct {
	Server ServerConfig `yaml:"server"`

	// Encoding selects how error responses are rendered:
	// "structured" (JSON) or "plain". Empty defaults to structured.
	Encoding string `yaml:"encoding,omitempty"`

	// RequestTimeout bounds one pass through the pipeline. Zero
	// means DefaultRequestTimeout.
	RequestTimeout Duration `yaml:"requestTimeout,omitempty"`

	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
	Auth      *AuthConfig      `yaml:"auth,omitempty"`

	Rules []RuleConfig `yaml:"rules"`

	Observability *ObservabilityConfig `yaml:"observability,omitempty"`
}

// ServerConfig configures the relay listener.
type ServerConfig struct {
	Address            string     `yaml:"address,omitempty"`
	Port               int        `yaml:"port,omitempty"`
	ReadTimeout        Duration   `yaml:"readTimeout,omitempty"`
	WriteTimeout       Duration   `yaml:"writeTimeout,omitempty"`
	IdleTimeout        Duration   `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout    Duration   `yaml:"shutdownTimeout,omitempty"`
	MaxHeaderBytes     int        `yaml:"maxHeaderBytes,omitempty"`
	MaxRequestBodySize int64      `yaml:"maxRequestBodySize,omitempty"`
	TLS                *TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig configures the listener TLS and client certificate
// policy.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile,omitempty"`
	KeyFile  string `yaml:"keyFile,omitempty"`

	// CAFile enables client certificate verification against the
	// given pool.
	CAFile string `yaml:"caFile,omitempty"`

	// RequireClientCert makes a verified client certificate
	// mandatory instead of optional.
	RequireClientCert bool `yaml:"requireClientCert,omitempty"`
}

// RateLimitConfig configures the token-bucket rate limiter.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	RequestsPerSecond int      `yaml:"requestsPerSecond,omitempty"`
	Burst             int      `yaml:"burst,omitempty"`
	PerClient         bool     `yaml:"perClient,omitempty"`
	ClientTTL         Duration `yaml:"clientTTL,omitempty"`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For
	// header is honored when keying per-client limits. Empty means
	// only the remote address is used.
	TrustedProxies []string `yaml:"trustedProxies,omitempty"`
}

// AuthConfig configures the upstream authentication middlewares.
type AuthConfig struct {
	// ClientCertificate establishes an mTLS identity from the peer
	// certificate when one was presented.
	ClientCertificate bool `yaml:"clientCertificate,omitempty"`

	Bearer *BearerConfig `yaml:"bearer,omitempty"`
}

// BearerConfig configures bearer token verification.
type BearerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	JWKSFile string `yaml:"jwksFile,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`
}

// RuleConfig describes one relay rule. Exactly one of Prefix and
// Pattern must be set.
type RuleConfig struct {
	Name            string            `yaml:"name"`
	Prefix          string            `yaml:"prefix,omitempty"`
	Pattern         string            `yaml:"pattern,omitempty"`
	Origin          string            `yaml:"origin"`
	Timeout         Duration          `yaml:"timeout,omitempty"`
	FollowRedirects bool              `yaml:"followRedirects,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	CircuitBreaker  *BreakerConfig    `yaml:"circuitBreaker,omitempty"`
}

// BreakerConfig configures a rule's circuit breaker.
type BreakerConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MaxRequests uint32   `yaml:"maxRequests,omitempty"`
	Interval    Duration `yaml:"interval,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	MinRequests uint32   `yaml:"minRequests,omitempty"`
}

// ObservabilityConfig groups logging, metrics and tracing settings.
type ObservabilityConfig struct {
	Logging *LoggingConfig `yaml:"logging,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Tracing *TracingConfig `yaml:"tracing,omitempty"`
}

// LoggingConfig configures the log sink.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
}

// ResponseEncoding returns the configured response encoding,
// defaulting to structured.
func (s *Spec) ResponseEncoding() respond.Encoding {
	if s.Encoding == "" {
		return respond.EncodingStructured
	}
	return respond.Encoding(s.Encoding)
}

// EffectivePort returns the listener port, applying the default.
func (s *ServerConfig) EffectivePort() int {
	if s.Port == 0 {
		return DefaultPort
	}
	return s.Port
}

// EffectiveRequestTimeout returns the pipeline timeout, applying the
// default.
func (s *Spec) EffectiveRequestTimeout() time.Duration {
	if s.RequestTimeout > 0 {
		return s.RequestTimeout.Duration()
	}
	return DefaultRequestTimeout
}
