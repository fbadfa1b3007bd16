// Package middleware provides the request pipeline middleware for the
// relay: diagnostic tracing, response header injection, certificate
// annotation, request identifiers, timeouts and rate limiting.
package middleware

import (
	"net/http"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// HTTP header constants.
const (
	// HeaderCacheControl is the Cache-Control header name.
	HeaderCacheControl = "Cache-Control"

	// HeaderFrameOptions is the X-Frame-Options header name.
	HeaderFrameOptions = "X-Frame-Options"

	// HeaderRequestID is the X-Request-ID header name.
	HeaderRequestID = "X-Request-ID"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"
)

// Header values injected by the middleware in this package.
const (
	// CacheControlNoCache marks a response as private and always
	// revalidated by intermediaries.
	CacheControlNoCache = "private, max-age=0, no-cache"

	// FrameOptionsDenyValue forbids rendering the response inside any
	// frame.
	FrameOptionsDenyValue = "DENY"
)

// setHeader sets a response header, allocating the header map for
// responses that were constructed without one.
func setHeader(resp *pipeline.Response, key, value string) {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(key, value)
}
