package middleware

import (
	"github.com/vyrodovalexey/avarelay/internal/auth/mtls"
	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// SanitizeRequest returns a copy of req that is safe to log: the raw
// client certificate is replaced by its common name and the
// certificate credential is stripped from the authorization. A request
// that carries no certificate material is returned as-is, so
// sanitizing an already sanitized request is a no-op.
func SanitizeRequest(req *pipeline.Request) *pipeline.Request {
	if req == nil {
		return nil
	}
	if req.Certificate == nil && (req.Authorization == nil || req.Authorization.Certificate == nil) {
		return req
	}

	out := req.Clone()
	if out.Certificate != nil {
		if cn, ok := mtls.CommonName(out.Certificate); ok {
			out.CommonName = cn
		}
		out.Certificate = nil
	}
	if out.Authorization != nil {
		out.Authorization.Certificate = nil
	}
	return out
}
