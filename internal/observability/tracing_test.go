package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

func TestNewTracerDisabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{
		ServiceName: "test",
		Enabled:     false,
	})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	ctx, span := tracer.StartSpan(context.Background(), "op")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracerEnabledNoEndpoint(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{
		ServiceName:  "test",
		Enabled:      true,
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rate float64
		want sdktrace.Sampler
	}{
		{name: "always", rate: 1.0, want: sdktrace.AlwaysSample()},
		{name: "above one", rate: 2.0, want: sdktrace.AlwaysSample()},
		{name: "never", rate: 0, want: sdktrace.NeverSample()},
		{name: "negative", rate: -1, want: sdktrace.NeverSample()},
		{name: "ratio", rate: 0.5, want: sdktrace.TraceIDRatioBased(0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := createSampler(tt.rate)
			assert.Equal(t, tt.want.Description(), got.Description())
		})
	}
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "test"})
	require.NoError(t, err)

	req := &pipeline.Request{
		Method: http.MethodGet,
		Path:   "/items",
		Host:   "example.com",
		Header: http.Header{},
	}

	t.Run("response passes through", func(t *testing.T) {
		t.Parallel()

		h := TracingMiddleware(tracer)(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			return pipeline.NewResponse(http.StatusOK), nil
		})

		resp, err := h(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("declined passes through", func(t *testing.T) {
		t.Parallel()

		h := TracingMiddleware(tracer)(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			return nil, nil
		})

		resp, err := h(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("failure passes through", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("boom")
		h := TracingMiddleware(tracer)(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			return nil, wantErr
		})

		resp, err := h(context.Background(), req)
		assert.Nil(t, resp)
		assert.Equal(t, wantErr, err)
	})
}
