// Package auth provides the upstream authentication middlewares that
// establish a request identity before the rest of the pipeline runs.
// Each middleware annotates the request with an Authorization; it is
// the sanitizer's job to keep the raw credentials they carry out of
// diagnostic output.
package auth

import (
	"context"

	"github.com/vyrodovalexey/avarelay/internal/auth/mtls"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// Authorization schemes.
const (
	SchemeMTLS   = "mtls"
	SchemeBearer = "bearer"
)

// ClientCertificate returns a middleware that establishes an mTLS
// identity from the request's client certificate. The authorization
// keeps the raw certificate as the credential it was derived from;
// requests without a certificate pass through unannotated.
func ClientCertificate() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			if req.Certificate == nil {
				return next(ctx, req)
			}

			cn, _ := mtls.CommonName(req.Certificate)
			annotated := req.WithAuthorization(&pipeline.Authorization{
				Scheme:      SchemeMTLS,
				Subject:     cn,
				Certificate: req.Certificate,
			})

			return next(ctx, annotated)
		}
	}
}
