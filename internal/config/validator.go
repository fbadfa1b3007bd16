package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a relay configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// ValidateConfig validates a relay configuration.
func ValidateConfig(config *RelayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *RelayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateServer(&config.Spec.Server)
	v.validateSpec(&config.Spec)
	v.validateRules(config.Spec.Rules)
	v.validateObservability(config.Spec.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRoot(config *RelayConfig) {
	if config.APIVersion != APIVersion {
		v.addError("apiVersion", fmt.Sprintf("must be %q, got %q", APIVersion, config.APIVersion))
	}
	if config.Kind != KindRelay {
		v.addError("kind", fmt.Sprintf("must be %q, got %q", KindRelay, config.Kind))
	}
	if config.Metadata.Name == "" {
		v.addError("metadata.name", "is required")
	}
}

func (v *Validator) validateServer(server *ServerConfig) {
	if server.Port < 0 || server.Port > 65535 {
		v.addError("spec.server.port", fmt.Sprintf("must be between 0 and 65535, got %d", server.Port))
	}

	if tls := server.TLS; tls != nil && tls.Enabled {
		if tls.CertFile == "" {
			v.addError("spec.server.tls.certFile", "is required when TLS is enabled")
		}
		if tls.KeyFile == "" {
			v.addError("spec.server.tls.keyFile", "is required when TLS is enabled")
		}
		if tls.RequireClientCert && tls.CAFile == "" {
			v.addError("spec.server.tls.caFile", "is required when client certificates are required")
		}
	}
}

func (v *Validator) validateSpec(spec *Spec) {
	if spec.Encoding != "" && !respond.Encoding(spec.Encoding).Valid() {
		v.addError("spec.encoding", fmt.Sprintf("must be %q or %q, got %q",
			respond.EncodingStructured, respond.EncodingPlain, spec.Encoding))
	}

	if rl := spec.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			v.addError("spec.rateLimit.requestsPerSecond", "must be positive when rate limiting is enabled")
		}
		if rl.Burst < 0 {
			v.addError("spec.rateLimit.burst", "must not be negative")
		}
		for i, proxy := range rl.TrustedProxies {
			if _, _, err := net.ParseCIDR(proxy); err == nil {
				continue
			}
			if net.ParseIP(proxy) == nil {
				v.addError(fmt.Sprintf("spec.rateLimit.trustedProxies[%d]", i),
					fmt.Sprintf("must be an IP address or CIDR, got %q", proxy))
			}
		}
	}

	if auth := spec.Auth; auth != nil && auth.Bearer != nil && auth.Bearer.Enabled {
		if auth.Bearer.JWKSFile == "" {
			v.addError("spec.auth.bearer.jwksFile", "is required when bearer authentication is enabled")
		}
	}
}

func (v *Validator) validateRules(rules []RuleConfig) {
	names := make(map[string]bool, len(rules))

	for i, rule := range rules {
		path := fmt.Sprintf("spec.rules[%d]", i)

		if rule.Name == "" {
			v.addError(path+".name", "is required")
		} else if names[rule.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate rule name %q", rule.Name))
		}
		names[rule.Name] = true

		v.validateMatcher(path, rule)
		v.validateOrigin(path, rule.Origin)
	}
}

func (v *Validator) validateMatcher(path string, rule RuleConfig) {
	switch {
	case rule.Prefix == "" && rule.Pattern == "":
		v.addError(path, "requires either prefix or pattern")
	case rule.Prefix != "" && rule.Pattern != "":
		v.addError(path, "prefix and pattern are mutually exclusive")
	case rule.Prefix != "" && !strings.HasPrefix(rule.Prefix, "/"):
		v.addError(path+".prefix", fmt.Sprintf("must start with /, got %q", rule.Prefix))
	case rule.Pattern != "":
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			v.addError(path+".pattern", fmt.Sprintf("invalid pattern: %v", err))
		}
	}
}

func (v *Validator) validateOrigin(path, origin string) {
	if origin == "" {
		v.addError(path+".origin", "is required")
		return
	}

	u, err := url.Parse(origin)
	if err != nil {
		v.addError(path+".origin", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.addError(path+".origin", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		v.addError(path+".origin", "missing host")
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig) {
	if obs == nil {
		return
	}

	if m := obs.Metrics; m != nil && m.Enabled {
		if m.Port < 0 || m.Port > 65535 {
			v.addError("spec.observability.metrics.port", fmt.Sprintf("must be between 0 and 65535, got %d", m.Port))
		}
	}

	if t := obs.Tracing; t != nil && t.Enabled {
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			v.addError("spec.observability.tracing.samplingRate",
				fmt.Sprintf("must be between 0 and 1, got %v", t.SamplingRate))
		}
	}
}
