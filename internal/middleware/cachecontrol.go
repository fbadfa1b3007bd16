package middleware

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// CacheControl returns a middleware that marks responses to GET and
// PUT requests as non-cacheable. Responses to other methods, declined
// results and raised errors pass through unmodified.
func CacheControl() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			resp, err := next(ctx, req)
			if err != nil || resp == nil {
				return resp, err
			}
			if req.Method == http.MethodGet || req.Method == http.MethodPut {
				setHeader(resp, HeaderCacheControl, CacheControlNoCache)
			}
			return resp, nil
		}
	}
}
