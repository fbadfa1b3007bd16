package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// RequestID returns a middleware that assigns each request an
// identifier, carries it through the context for log correlation and
// echoes it on any produced response. An identifier already present on
// the request is reused.
func RequestID() pipeline.Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns a RequestID middleware that uses a
// custom identifier generator.
func RequestIDWithGenerator(generator func() string) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = generator()
			}

			ctx = observability.ContextWithRequestID(ctx, requestID)

			resp, err := next(ctx, req)
			if resp != nil {
				setHeader(resp, HeaderRequestID, requestID)
			}
			return resp, err
		}
	}
}
