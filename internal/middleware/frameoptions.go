package middleware

import (
	"context"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// FrameOptionsDeny returns a middleware that forbids rendering any
// produced response inside a frame. Declined results and raised errors
// pass through verbatim.
func FrameOptionsDeny() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			resp, err := next(ctx, req)
			if err != nil || resp == nil {
				return resp, err
			}
			setHeader(resp, HeaderFrameOptions, FrameOptionsDenyValue)
			return resp, nil
		}
	}
}
