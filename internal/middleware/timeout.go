package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// TypeGatewayTimeout is the error envelope type for expired deadlines.
const TypeGatewayTimeout = "gateway-timeout"

// timeoutResult carries the pipeline outcome across the handler
// goroutine boundary.
type timeoutResult struct {
	resp *pipeline.Response
	err  error
}

// Timeout returns a middleware that bounds how long the rest of the
// pipeline may take. When the deadline passes first the client
// receives a gateway timeout and the abandoned handler keeps running
// against its cancelled context until it returns.
func Timeout(timeout time.Duration, enc respond.Encoding, logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			// Buffered so an abandoned handler can still deliver its
			// result and exit.
			done := make(chan timeoutResult, 1)

			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						done <- timeoutResult{err: fmt.Errorf("handler panic: %v", rec)}
					}
				}()
				resp, err := next(ctx, req)
				done <- timeoutResult{resp: resp, err: err}
			}()

			select {
			case res := <-done:
				return res.resp, res.err
			case <-ctx.Done():
				logger.WithContext(ctx).Warn("request timed out",
					observability.String("method", req.Method),
					observability.String("path", req.Path),
					observability.Duration("timeout", timeout),
				)
				return respond.Error(http.StatusGatewayTimeout, TypeGatewayTimeout, "request timed out", enc), nil
			}
		}
	}
}
