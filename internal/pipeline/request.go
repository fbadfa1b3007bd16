package pipeline

import (
	"crypto/x509"
	"net/http"
)

// Authorization is the identity established by an upstream
// authentication middleware. Certificate holds the raw credential the
// identity was derived from and must never reach diagnostic output;
// the sanitizer strips it.
type Authorization struct {
	// Scheme names the mechanism that established the identity,
	// e.g. "mtls" or "bearer".
	Scheme string

	// Subject is the authenticated principal.
	Subject string

	// Token is the raw bearer credential, when the scheme used one.
	Token string

	// Certificate is the raw client certificate, when the scheme
	// used one.
	Certificate *x509.Certificate
}

// clone returns a copy of the authorization, nil-safe.
func (a *Authorization) clone() *Authorization {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Request is a snapshot of one inbound HTTP request. It is immutable
// by convention: middlewares derive annotated copies via Clone or the
// With helpers and never mutate a request they received, so concurrent
// readers below them always observe a consistent view.
type Request struct {
	Method     string
	Path       string
	RawQuery   string
	Host       string
	RemoteAddr string

	// TLS reports whether the request arrived over a TLS connection.
	TLS bool

	// Header keys are canonicalized by net/http.
	Header http.Header

	// Cookies holds the parsed Cookie header, populated by the
	// cookie middleware. Nil when parsing has not run.
	Cookies []*http.Cookie

	// Body is the full request body; nil means absent.
	Body []byte

	// Certificate is the raw client certificate, when one was
	// presented. CommonName is the identity derived from it by the
	// certificate-annotation middleware; empty means not derived.
	Certificate *x509.Certificate
	CommonName  string

	Authorization *Authorization
}

// Clone returns a copy of the request that is safe to annotate
// independently of the original. The body bytes are shared; requests
// treat the body as read-only.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if r.Cookies != nil {
		c.Cookies = make([]*http.Cookie, len(r.Cookies))
		copy(c.Cookies, r.Cookies)
	}
	c.Authorization = r.Authorization.clone()
	return &c
}

// WithCommonName returns a copy annotated with the certificate common
// name.
func (r *Request) WithCommonName(cn string) *Request {
	c := r.Clone()
	c.CommonName = cn
	return c
}

// WithAuthorization returns a copy carrying the given authorization.
func (r *Request) WithAuthorization(a *Authorization) *Request {
	c := r.Clone()
	c.Authorization = a
	return c
}

// WithCookies returns a copy carrying the parsed request cookies.
func (r *Request) WithCookies(cookies []*http.Cookie) *Request {
	c := r.Clone()
	c.Cookies = cookies
	return c
}

// Cookie returns the named request cookie, or nil when absent.
func (r *Request) Cookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
