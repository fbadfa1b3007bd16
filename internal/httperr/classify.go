package httperr

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
	"github.com/vyrodovalexey/avarelay/internal/respond"
)

// TypeApplicationError is the envelope type used by the schema and
// catch-all layers.
const TypeApplicationError = "application-error"

// InternalErrorPrefix prefixes every catch-all message.
const InternalErrorPrefix = "Internal Server Error: "

// DomainErrors returns the innermost classification layer. Failures
// tagged with a known domain kind become 400 responses carrying the
// kind and message; every other failure is re-raised untouched.
func DomainErrors(enc respond.Encoding, logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			resp, err := next(ctx, req)
			if err == nil {
				return resp, nil
			}

			de, ok := AsDomainError(err)
			if !ok {
				return nil, err
			}

			logger.WithContext(ctx).Error("domain error",
				observability.String("kind", string(de.Kind)),
				observability.String("message", de.Error()),
			)

			return respond.Error(
				http.StatusBadRequest,
				string(de.Kind),
				de.Error(),
				enc,
			), nil
		}
	}
}

// SchemaErrors returns the middle classification layer. It owns any
// failure whose message carries the schema-violation signature,
// answering 500 with the composed diagnostic in an application-error
// envelope; everything else is re-raised so an outer layer can claim
// it.
func SchemaErrors(enc respond.Encoding, logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			resp, err := next(ctx, req)
			if err == nil {
				return resp, nil
			}

			if !IsSchemaViolation(err) {
				return nil, err
			}

			msg := composeSchemaMessage(err)
			logger.WithContext(ctx).Error("schema validation failure",
				observability.String("message", msg),
			)

			return respond.Error(
				http.StatusInternalServerError,
				TypeApplicationError,
				msg,
				enc,
			), nil
		}
	}
}

// Recovery returns the outermost backstop layer: every failure that
// reaches it, raised or panicked, becomes a 500 response with the
// internal-error prefix. It never re-raises, so no failure escapes to
// the transport.
func Recovery(enc respond.Encoding, logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (resp *pipeline.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithContext(ctx).Error("panic recovered",
						observability.Any("panic", r),
						observability.String("method", req.Method),
						observability.String("path", req.Path),
						observability.String("stack", string(debug.Stack())),
					)
					resp = internalError(fmt.Sprintf("%v", r), enc)
					err = nil
				}
			}()

			resp, err = next(ctx, req)
			if err == nil {
				return resp, nil
			}

			logger.WithContext(ctx).Error("uncaught failure",
				observability.Error(err),
				observability.String("method", req.Method),
				observability.String("path", req.Path),
			)

			return internalError(err.Error(), enc), nil
		}
	}
}

// internalError builds the catch-all response.
func internalError(detail string, enc respond.Encoding) *pipeline.Response {
	return respond.Error(
		http.StatusInternalServerError,
		TypeApplicationError,
		InternalErrorPrefix+detail,
		enc,
	)
}

// Classifier composes the three layers in their required nesting:
// domain innermost, then schema, with the recovery backstop outermost.
// Swapping the order misclassifies, so callers should prefer this over
// assembling the layers by hand.
func Classifier(enc respond.Encoding, logger observability.Logger) pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return pipeline.Chain(next,
			Recovery(enc, logger),
			SchemaErrors(enc, logger),
			DomainErrors(enc, logger),
		)
	}
}
