package pipeline

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagMiddleware appends tag to the order slice before and after the
// wrapped handler runs.
func tagMiddleware(tag string, order *[]string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			*order = append(*order, tag+":before")
			resp, err := next(ctx, req)
			*order = append(*order, tag+":after")
			return resp, err
		}
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	terminal := func(ctx context.Context, req *Request) (*Response, error) {
		order = append(order, "terminal")
		return NewResponse(http.StatusOK), nil
	}

	h := Chain(terminal,
		tagMiddleware("outer", &order),
		tagMiddleware("inner", &order),
	)

	resp, err := h(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, []string{
		"outer:before",
		"inner:before",
		"terminal",
		"inner:after",
		"outer:after",
	}, order)
}

func TestChainNoMiddleware(t *testing.T) {
	t.Parallel()

	terminal := func(ctx context.Context, req *Request) (*Response, error) {
		return nil, nil
	}

	resp, err := Chain(terminal)(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Nil(t, resp, "declined response must pass through untouched")
}

func TestRequestClone(t *testing.T) {
	t.Parallel()

	orig := &Request{
		Method: http.MethodPut,
		Path:   "/items/42",
		Header: http.Header{"X-Test": []string{"a"}},
		Cookies: []*http.Cookie{
			{Name: "session", Value: "abc"},
		},
		Authorization: &Authorization{Scheme: "mtls", Subject: "svc"},
	}

	clone := orig.Clone()
	clone.Header.Set("X-Test", "b")
	clone.Cookies[0] = &http.Cookie{Name: "session", Value: "xyz"}
	clone.Authorization.Subject = "other"

	assert.Equal(t, "a", orig.Header.Get("X-Test"))
	assert.Equal(t, "abc", orig.Cookies[0].Value)
	assert.Equal(t, "svc", orig.Authorization.Subject)
}

func TestRequestCloneNilFields(t *testing.T) {
	t.Parallel()

	clone := (&Request{Method: http.MethodGet}).Clone()
	assert.Nil(t, clone.Header)
	assert.Nil(t, clone.Cookies)
	assert.Nil(t, clone.Authorization)
}

func TestRequestWithHelpers(t *testing.T) {
	t.Parallel()

	orig := &Request{Method: http.MethodGet, Path: "/"}

	annotated := orig.WithCommonName("client.example.com")
	assert.Empty(t, orig.CommonName, "annotation must not touch the original")
	assert.Equal(t, "client.example.com", annotated.CommonName)

	authed := annotated.WithAuthorization(&Authorization{Scheme: "bearer", Subject: "alice"})
	assert.Nil(t, annotated.Authorization)
	require.NotNil(t, authed.Authorization)
	assert.Equal(t, "alice", authed.Authorization.Subject)
}

func TestRequestCookie(t *testing.T) {
	t.Parallel()

	req := &Request{
		Cookies: []*http.Cookie{
			{Name: "a", Value: "1"},
			{Name: "b", Value: "2"},
		},
	}

	c := req.Cookie("b")
	require.NotNil(t, c)
	assert.Equal(t, "2", c.Value)
	assert.Nil(t, req.Cookie("missing"))
}

func TestResponseAddCookie(t *testing.T) {
	t.Parallel()

	resp := NewResponse(http.StatusOK)
	require.NotNil(t, resp.Header)

	resp.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	require.Len(t, resp.Cookies, 1)
	assert.Equal(t, "session", resp.Cookies[0].Name)
}
