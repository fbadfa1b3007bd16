package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

const testIssuer = "https://issuer.test"

// bearerKeys generates an RSA key pair as jwk keys sharing a key ID.
func bearerKeys(t *testing.T) (private jwk.Key, public jwk.Set) {
	t.Helper()

	rawKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err = jwk.FromRaw(rawKey)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, "test-key-id"))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.FromRaw(rawKey.Public())
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "test-key-id"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))

	public = jwk.NewSet()
	require.NoError(t, public.AddKey(pub))

	return private, public
}

// signToken builds and signs a token with the given subject and
// lifetime.
func signToken(t *testing.T, key jwk.Key, subject string, ttl time.Duration) string {
	t.Helper()

	token, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(ttl)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)

	return string(signed)
}

func bearerRequest(token string) *pipeline.Request {
	req := &pipeline.Request{
		Method: http.MethodGet,
		Path:   "/api/things",
		Header: http.Header{},
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestBearerAnnotatesValidToken(t *testing.T) {
	t.Parallel()

	private, public := bearerKeys(t)
	verifier := NewBearerVerifier(public, respond.EncodingStructured,
		WithBearerIssuer(testIssuer),
	)

	var got *pipeline.Request
	h := verifier.Middleware()(captureHandler(&got))

	token := signToken(t, private, "alice", time.Hour)
	resp, err := h(context.Background(), bearerRequest(token))
	require.NoError(t, err)
	assert.Nil(t, resp, "the inner handler's declined response passes through")

	require.NotNil(t, got)
	require.NotNil(t, got.Authorization)
	assert.Equal(t, SchemeBearer, got.Authorization.Scheme)
	assert.Equal(t, "alice", got.Authorization.Subject)
	assert.Equal(t, token, got.Authorization.Token)
}

func TestBearerRejections(t *testing.T) {
	t.Parallel()

	private, public := bearerKeys(t)
	otherPrivate, _ := bearerKeys(t)

	tests := []struct {
		name  string
		token string
		opts  []BearerOption
	}{
		{
			name:  "garbage token",
			token: "not-a-jwt",
		},
		{
			name:  "expired token",
			token: signToken(t, private, "alice", -time.Minute),
		},
		{
			name:  "wrong signing key",
			token: signToken(t, otherPrivate, "alice", time.Hour),
		},
		{
			name:  "wrong issuer",
			token: signToken(t, private, "alice", time.Hour),
			opts:  []BearerOption{WithBearerIssuer("https://someone-else.test")},
		},
		{
			name:  "missing audience",
			token: signToken(t, private, "alice", time.Hour),
			opts:  []BearerOption{WithBearerAudience("expected-aud")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verifier := NewBearerVerifier(public, respond.EncodingStructured, tt.opts...)

			var got *pipeline.Request
			h := verifier.Middleware()(captureHandler(&got))

			resp, err := h(context.Background(), bearerRequest(tt.token))
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Nil(t, got, "a rejected token must not reach the inner handler")

			var envelope respond.ErrorEnvelope
			require.NoError(t, json.Unmarshal(resp.Body, &envelope))
			assert.Equal(t, TypeUnauthorized, envelope.Error.Type)
		})
	}
}

func TestBearerPassThroughWithoutHeader(t *testing.T) {
	t.Parallel()

	_, public := bearerKeys(t)
	verifier := NewBearerVerifier(public, respond.EncodingStructured)

	var got *pipeline.Request
	h := verifier.Middleware()(captureHandler(&got))

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bare bearer", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := bearerRequest("")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got = nil
			_, err := h(context.Background(), req)
			require.NoError(t, err)

			require.NotNil(t, got)
			assert.Nil(t, got.Authorization)
		})
	}
}

func TestNewBearerVerifierFromFile(t *testing.T) {
	t.Parallel()

	private, public := bearerKeys(t)

	jwks, err := json.Marshal(public)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jwks.json")
	require.NoError(t, os.WriteFile(path, jwks, 0o600))

	verifier, err := NewBearerVerifierFromFile(path, respond.EncodingStructured)
	require.NoError(t, err)

	var got *pipeline.Request
	h := verifier.Middleware()(captureHandler(&got))

	_, err = h(context.Background(), bearerRequest(signToken(t, private, "bob", time.Hour)))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Authorization)
	assert.Equal(t, "bob", got.Authorization.Subject)
}

func TestNewBearerVerifierFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBearerVerifierFromFile(filepath.Join(t.TempDir(), "missing.json"), respond.EncodingPlain)
	assert.Error(t, err)
}
