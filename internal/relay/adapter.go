// Package relay hosts the composed pipeline behind net/http: it
// adapts wire requests into pipeline snapshots, assembles the
// middleware chain from configuration and serves it with graceful
// shutdown and live reload.
package relay

import (
	"io"
	"net/http"

	"github.com/vyrodovalexey/avarelay/internal/auth/mtls"
	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// TypeNotFound is the envelope type for requests no handler claimed.
const TypeNotFound = "not-found"

// Adapter bridges net/http and the pipeline. The pipeline never
// fabricates a response for a declined request; the adapter owns that
// boundary and maps nil to 404, because the wire always needs an
// answer.
type Adapter struct {
	handler     pipeline.Handler
	enc         respond.Encoding
	logger      observability.Logger
	maxBodySize int64
}

// AdapterOption is a functional option for configuring the adapter.
type AdapterOption func(*Adapter)

// WithAdapterLogger sets the logger for the adapter.
func WithAdapterLogger(logger observability.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMaxBodySize caps the request body size in bytes. Zero disables
// the cap.
func WithMaxBodySize(limit int64) AdapterOption {
	return func(a *Adapter) {
		a.maxBodySize = limit
	}
}

// NewAdapter creates an http.Handler serving the given pipeline
// handler. Declined requests are answered with 404 in the adapter's
// encoding.
func NewAdapter(handler pipeline.Handler, enc respond.Encoding, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		handler: handler,
		enc:     enc,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := a.snapshot(w, r)
	if err != nil {
		a.logger.Warn("failed to read request body",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		a.write(w, respond.Error(
			http.StatusRequestEntityTooLarge,
			"request-too-large",
			"request body exceeds the configured limit",
			a.enc,
		))
		return
	}

	resp, err := a.handler(r.Context(), req)
	if err != nil {
		// The classification backstop owns every raised failure; an
		// error here means the pipeline was assembled without it.
		a.logger.Error("failure escaped the pipeline",
			observability.String("path", req.Path),
			observability.Error(err),
		)
		a.write(w, respond.Error(
			http.StatusInternalServerError,
			"application-error",
			"Internal Server Error",
			a.enc,
		))
		return
	}

	if resp == nil {
		a.write(w, respond.Error(
			http.StatusNotFound,
			TypeNotFound,
			"no handler produced a response",
			a.enc,
		))
		return
	}

	a.write(w, resp)
}

// snapshot converts the wire request into a pipeline request,
// attaching the TLS peer certificate when one was presented.
func (a *Adapter) snapshot(w http.ResponseWriter, r *http.Request) (*pipeline.Request, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		reader := r.Body
		if a.maxBodySize > 0 {
			reader = http.MaxBytesReader(w, r.Body, a.maxBodySize)
		}
		b, err := io.ReadAll(reader)
		if err != nil {
			return nil, err
		}
		if len(b) > 0 {
			body = b
		}
	}

	return &pipeline.Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		RawQuery:    r.URL.RawQuery,
		Host:        r.Host,
		RemoteAddr:  r.RemoteAddr,
		TLS:         r.TLS != nil,
		Header:      r.Header.Clone(),
		Body:        body,
		Certificate: mtls.PeerCertificate(r.TLS),
	}, nil
}

// write renders a pipeline response onto the wire.
func (a *Adapter) write(w http.ResponseWriter, resp *pipeline.Response) {
	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	for _, c := range resp.Cookies {
		if v := c.String(); v != "" {
			header.Add("Set-Cookie", v)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			a.logger.Debug("failed to write response body",
				observability.Error(err),
			)
		}
	}
}
