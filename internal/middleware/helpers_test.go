package middleware

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// testCertificate creates a self-signed certificate with the given
// common name.
func testCertificate(t *testing.T, commonName string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert
}

// captureHandler records the request it receives and declines to
// produce a response.
func captureHandler(got **pipeline.Request) pipeline.Handler {
	return func(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		*got = req
		return nil, nil
	}
}

// okHandler produces a fixed 200 response.
func okHandler(body string) pipeline.Handler {
	return func(_ context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
		resp := pipeline.NewResponse(http.StatusOK)
		resp.Body = []byte(body)
		return resp, nil
	}
}

// logEntry is one captured log call.
type logEntry struct {
	level  string
	msg    string
	fields []observability.Field
}

// capturingLogger records log calls for assertions. With and
// WithContext return the same logger so entries from child loggers are
// captured too.
type capturingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func newCapturingLogger() *capturingLogger { return &capturingLogger{} }

func (l *capturingLogger) record(level, msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *capturingLogger) Debug(msg string, fields ...observability.Field) {
	l.record("debug", msg, fields)
}

func (l *capturingLogger) Info(msg string, fields ...observability.Field) {
	l.record("info", msg, fields)
}

func (l *capturingLogger) Warn(msg string, fields ...observability.Field) {
	l.record("warn", msg, fields)
}

func (l *capturingLogger) Error(msg string, fields ...observability.Field) {
	l.record("error", msg, fields)
}

func (l *capturingLogger) Fatal(msg string, fields ...observability.Field) {
	l.record("fatal", msg, fields)
}

func (l *capturingLogger) With(...observability.Field) observability.Logger { return l }

func (l *capturingLogger) WithContext(context.Context) observability.Logger { return l }

func (l *capturingLogger) Sync() error { return nil }

// byMessage returns the first captured entry with the given message.
func (l *capturingLogger) byMessage(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// fieldKeys extracts the field keys of a captured entry.
func fieldKeys(e logEntry) []string {
	keys := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// fieldString returns the string value of the named field.
func fieldString(e logEntry, key string) (string, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.String, true
		}
	}
	return "", false
}
