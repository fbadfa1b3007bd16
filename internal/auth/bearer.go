package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// TypeUnauthorized is the envelope type for rejected bearer tokens.
const TypeUnauthorized = "unauthorized"

// bearerPrefix is the authorization scheme prefix, compared
// case-insensitively.
const bearerPrefix = "bearer "

// BearerVerifier verifies bearer tokens against a JWK set.
type BearerVerifier struct {
	keys     jwk.Set
	issuer   string
	audience string
	enc      respond.Encoding
	logger   observability.Logger
}

// BearerOption is a functional option for configuring the verifier.
type BearerOption func(*BearerVerifier)

// WithBearerIssuer requires tokens to carry the given issuer.
func WithBearerIssuer(issuer string) BearerOption {
	return func(v *BearerVerifier) {
		v.issuer = issuer
	}
}

// WithBearerAudience requires tokens to carry the given audience.
func WithBearerAudience(audience string) BearerOption {
	return func(v *BearerVerifier) {
		v.audience = audience
	}
}

// WithBearerLogger sets the logger for the verifier.
func WithBearerLogger(logger observability.Logger) BearerOption {
	return func(v *BearerVerifier) {
		v.logger = logger
	}
}

// NewBearerVerifier creates a verifier over the given key set.
// Rejections are encoded with enc, matching the classifier encoding
// of the surrounding pipeline.
func NewBearerVerifier(keys jwk.Set, enc respond.Encoding, opts ...BearerOption) *BearerVerifier {
	v := &BearerVerifier{
		keys:   keys,
		enc:    enc,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// NewBearerVerifierFromFile creates a verifier reading its JWK set
// from a JWKS file.
func NewBearerVerifierFromFile(path string, enc respond.Encoding, opts ...BearerOption) (*BearerVerifier, error) {
	keys, err := jwk.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS %s: %w", path, err)
	}
	return NewBearerVerifier(keys, enc, opts...), nil
}

// Middleware returns the bearer authentication middleware. Requests
// without an Authorization bearer header pass through unannotated; a
// present token is verified and either annotates the request with its
// identity or produces a 401 without invoking the rest of the chain.
func (v *BearerVerifier) Middleware() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			raw, ok := bearerToken(req)
			if !ok {
				return next(ctx, req)
			}

			token, err := v.verify(ctx, raw)
			if err != nil {
				v.logger.WithContext(ctx).Warn("bearer token rejected",
					observability.Error(err),
					observability.String("path", req.Path),
				)
				return respond.Error(
					http.StatusUnauthorized,
					TypeUnauthorized,
					"invalid bearer token",
					v.enc,
				), nil
			}

			annotated := req.WithAuthorization(&pipeline.Authorization{
				Scheme:  SchemeBearer,
				Subject: token.Subject(),
				Token:   raw,
			})

			return next(ctx, annotated)
		}
	}
}

// verify parses and validates the raw token against the key set.
func (v *BearerVerifier) verify(ctx context.Context, raw string) (jwt.Token, error) {
	opts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithKeySet(v.keys),
		jwt.WithValidate(true),
	}

	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	return jwt.Parse([]byte(raw), opts...)
}

// bearerToken extracts the bearer credential from the Authorization
// header.
func bearerToken(req *pipeline.Request) (string, bool) {
	header := req.Header.Get("Authorization")
	if len(header) <= len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
