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

func TestCacheControlByMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		want   string
	}{
		{method: http.MethodGet, want: CacheControlNoCache},
		{method: http.MethodPut, want: CacheControlNoCache},
		{method: http.MethodPost, want: ""},
		{method: http.MethodDelete, want: ""},
		{method: http.MethodHead, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			h := CacheControl()(okHandler("ok"))

			resp, err := h(context.Background(), &pipeline.Request{
				Method: tt.method,
				Path:   "/api/things",
				Header: http.Header{},
			})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.Header.Get(HeaderCacheControl))
		})
	}
}

func TestCacheControlOverwritesExistingHeader(t *testing.T) {
	t.Parallel()

	h := CacheControl()(func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
		resp := pipeline.NewResponse(http.StatusOK)
		resp.Header.Set(HeaderCacheControl, "public, max-age=3600")
		return resp, nil
	})

	resp, err := h(context.Background(), &pipeline.Request{Method: http.MethodGet, Path: "/", Header: http.Header{}})
	require.NoError(t, err)
	assert.Equal(t, CacheControlNoCache, resp.Header.Get(HeaderCacheControl))
}

func TestCacheControlPassesDeclineThrough(t *testing.T) {
	t.Parallel()

	h := CacheControl()(func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
		return nil, nil
	})

	resp, err := h(context.Background(), &pipeline.Request{Method: http.MethodGet, Path: "/", Header: http.Header{}})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCacheControlPassesErrorThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	h := CacheControl()(func(context.Context, *pipeline.Request) (*pipeline.Response, error) {
		return nil, boom
	})

	resp, err := h(context.Background(), &pipeline.Request{Method: http.MethodGet, Path: "/", Header: http.Header{}})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, resp)
}
