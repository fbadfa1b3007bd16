package middleware

import (
	"context"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// TraceRequest returns a middleware that logs every incoming request
// at debug level: a coarse method+path record, then a sanitized
// snapshot of the full request. The request itself continues through
// the pipeline untouched.
func TraceRequest(logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			log := logger.WithContext(ctx)
			log.Debug("handling request",
				observability.String("method", req.Method),
				observability.String("path", req.Path),
			)
			log.Debug("request snapshot", requestFields(SanitizeRequest(req))...)
			return next(ctx, req)
		}
	}
}

// TraceResponse returns a middleware that logs the pipeline outcome at
// debug level: the produced response, the decline, or the raised
// error. The outcome propagates verbatim.
func TraceResponse(logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			resp, err := next(ctx, req)

			log := logger.WithContext(ctx)
			switch {
			case err != nil:
				log.Debug("request failed",
					observability.String("method", req.Method),
					observability.String("path", req.Path),
					observability.Error(err),
				)
			case resp == nil:
				log.Debug("request declined",
					observability.String("method", req.Method),
					observability.String("path", req.Path),
				)
			default:
				log.Debug("request handled",
					observability.String("method", req.Method),
					observability.String("path", req.Path),
					observability.Int("status", resp.StatusCode),
					observability.Int("response_bytes", len(resp.Body)),
				)
			}

			return resp, err
		}
	}
}

// requestFields flattens a sanitized request into log fields. The
// certificate credential never appears here, only its common name.
func requestFields(req *pipeline.Request) []observability.Field {
	fields := []observability.Field{
		observability.String("method", req.Method),
		observability.String("path", req.Path),
	}
	if req.RawQuery != "" {
		fields = append(fields, observability.String("query", req.RawQuery))
	}
	if req.Host != "" {
		fields = append(fields, observability.String("host", req.Host))
	}
	if req.RemoteAddr != "" {
		fields = append(fields, observability.String("remote_addr", req.RemoteAddr))
	}
	if len(req.Header) > 0 {
		fields = append(fields, observability.Any("headers", req.Header))
	}
	if req.CommonName != "" {
		fields = append(fields, observability.String("common_name", req.CommonName))
	}
	if req.Authorization != nil {
		fields = append(fields,
			observability.String("auth_scheme", req.Authorization.Scheme),
			observability.String("auth_subject", req.Authorization.Subject),
		)
	}
	return fields
}
