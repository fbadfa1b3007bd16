package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

func TestTraceRequestLogsSanitizedSnapshot(t *testing.T) {
	t.Parallel()

	logger := newCapturingLogger()
	cert := testCertificate(t, "client.internal")

	req := &pipeline.Request{
		Method:      http.MethodGet,
		Path:        "/api/things",
		RawQuery:    "limit=5",
		Header:      http.Header{"Accept": []string{"application/json"}},
		Certificate: cert,
	}

	var got *pipeline.Request
	h := TraceRequest(logger)(captureHandler(&got))

	_, err := h(context.Background(), req)
	require.NoError(t, err)

	coarse, ok := logger.byMessage("handling request")
	require.True(t, ok)
	method, ok := fieldString(coarse, "method")
	require.True(t, ok)
	assert.Equal(t, http.MethodGet, method)
	path, ok := fieldString(coarse, "path")
	require.True(t, ok)
	assert.Equal(t, "/api/things", path)

	snapshot, ok := logger.byMessage("request snapshot")
	require.True(t, ok)
	cn, ok := fieldString(snapshot, "common_name")
	require.True(t, ok)
	assert.Equal(t, "client.internal", cn)

	// Sanitizing happens on a log copy only.
	require.NotNil(t, got)
	assert.Same(t, req, got)
	assert.Same(t, cert, got.Certificate)
}

func TestTraceRequestPassesResultThrough(t *testing.T) {
	t.Parallel()

	logger := newCapturingLogger()
	h := TraceRequest(logger)(okHandler("hello"))

	resp, err := h(context.Background(), &pipeline.Request{Method: http.MethodGet, Path: "/", Header: http.Header{}})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTraceResponseOutcomes(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name    string
		handler pipeline.Handler
		wantMsg string
		wantErr error
	}{
		{
			name:    "produced response",
			handler: okHandler("ok"),
			wantMsg: "request handled",
		},
		{
			name: "declined",
			handler: func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
				return nil, nil
			},
			wantMsg: "request declined",
		},
		{
			name: "raised error",
			handler: func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
				return nil, boom
			},
			wantMsg: "request failed",
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger := newCapturingLogger()
			h := TraceResponse(logger)(tt.handler)

			resp, err := h(context.Background(), &pipeline.Request{Method: http.MethodGet, Path: "/x", Header: http.Header{}})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantMsg == "request handled" {
				require.NotNil(t, resp)
			}

			_, ok := logger.byMessage(tt.wantMsg)
			assert.True(t, ok)
		})
	}
}
