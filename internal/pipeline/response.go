package pipeline

import "net/http"

// Response is the result of one pipeline invocation. A nil *Response
// is the declined/absent state and propagates through the chain
// verbatim; a non-nil Response always has a non-nil Header.
type Response struct {
	StatusCode int
	Header     http.Header

	// Cookies holds response-side cookie mutations; the cookie
	// middleware serializes them onto Set-Cookie headers.
	Cookies []*http.Cookie

	Body []byte
}

// NewResponse returns a response with the given status and an empty,
// non-nil header map.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
	}
}

// AddCookie records a cookie mutation on the response.
func (r *Response) AddCookie(c *http.Cookie) {
	r.Cookies = append(r.Cookies, c)
}
