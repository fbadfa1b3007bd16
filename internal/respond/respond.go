// Package respond builds complete HTTP responses in one of the two
// supported encodings and defines the error envelope shared by the
// classification layers.
package respond

import (
	"encoding/json"
	"fmt"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// Encoding selects the wire form of built responses.
type Encoding string

const (
	// EncodingStructured serializes bodies as JSON.
	EncodingStructured Encoding = "structured"

	// EncodingPlain writes bodies as plain text.
	EncodingPlain Encoding = "plain"
)

// Content-type values set by Build.
const (
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json; charset=utf-8"
	ContentTypeText   = "text/plain; charset=utf-8"
)

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	return e == EncodingStructured || e == EncodingPlain
}

// Build constructs a response with the given status and body. For
// EncodingStructured the body is serialized as JSON. Build is total:
// callers guarantee serializable bodies, and a body that still fails
// to marshal degrades to its textual form as plain text instead of
// failing.
func Build(status int, body any, enc Encoding) *pipeline.Response {
	resp := pipeline.NewResponse(status)

	if enc == EncodingStructured {
		b, err := json.Marshal(body)
		if err == nil {
			resp.Header.Set(HeaderContentType, ContentTypeJSON)
			resp.Body = b
			return resp
		}
	}

	resp.Header.Set(HeaderContentType, ContentTypeText)
	resp.Body = toText(body)
	return resp
}

// toText renders a plain-text body. Strings and byte slices pass
// through verbatim.
func toText(body any) []byte {
	switch v := body.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return fmt.Appendf(nil, "%v", v)
	}
}

// ErrorDetail is the inner element of the error envelope.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEnvelope is the uniform failure body:
// {"error": {"type": ..., "message": ...}}.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// Error builds the failure response every classification layer
// shares: the envelope when structured, the bare message when plain.
func Error(status int, errType, message string, enc Encoding) *pipeline.Response {
	if enc == EncodingPlain {
		return Build(status, message, enc)
	}

	return Build(status, ErrorEnvelope{
		Error: ErrorDetail{Type: errType, Message: message},
	}, enc)
}
