package middleware

import (
	"context"

	"github.com/vyrodovalexey/avarelay/internal/auth/mtls"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// CertificateCommonName returns a middleware that annotates requests
// carrying a client certificate with the certificate's common name.
// Requests without a certificate pass through untouched.
func CertificateCommonName() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			cn, ok := mtls.CommonName(req.Certificate)
			if !ok {
				return next(ctx, req)
			}
			return next(ctx, req.WithCommonName(cn))
		}
	}
}
