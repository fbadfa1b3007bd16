package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

func forwardedRequest(remoteAddr, forwardedFor string) *pipeline.Request {
	req := &pipeline.Request{
		Method:     http.MethodGet,
		Path:       "/",
		Header:     http.Header{},
		RemoteAddr: remoteAddr,
	}
	if forwardedFor != "" {
		req.Header.Set(HeaderXForwardedFor, forwardedFor)
	}
	return req
}

func TestClientIPExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		trusted      []string
		remoteAddr   string
		forwardedFor string
		want         string
	}{
		{
			name:       "no trusted proxies uses remote addr",
			remoteAddr: "203.0.113.7:4711",
			want:       "203.0.113.7",
		},
		{
			name:         "no trusted proxies ignores forwarded header",
			remoteAddr:   "203.0.113.7:4711",
			forwardedFor: "198.51.100.1",
			want:         "203.0.113.7",
		},
		{
			name:         "trusted proxy walks forwarded chain",
			trusted:      []string{"10.0.0.0/8"},
			remoteAddr:   "10.0.0.5:443",
			forwardedFor: "198.51.100.1, 10.0.0.9",
			want:         "198.51.100.1",
		},
		{
			name:         "untrusted peer ignores forwarded header",
			trusted:      []string{"10.0.0.0/8"},
			remoteAddr:   "203.0.113.7:443",
			forwardedFor: "198.51.100.1",
			want:         "203.0.113.7",
		},
		{
			name:         "fully trusted chain falls back to peer",
			trusted:      []string{"10.0.0.0/8"},
			remoteAddr:   "10.0.0.5:443",
			forwardedFor: "10.0.0.1, 10.0.0.2",
			want:         "10.0.0.5",
		},
		{
			name:       "single ip trust entry",
			trusted:    []string{"10.0.0.5"},
			remoteAddr: "10.0.0.5:443",
			want:       "10.0.0.5",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:8443",
			want:       "2001:db8::1",
		},
		{
			name:       "invalid trust entries are skipped",
			trusted:    []string{"not-a-cidr", ""},
			remoteAddr: "203.0.113.7:4711",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewClientIPExtractor(tt.trusted)
			got := e.Extract(forwardedRequest(tt.remoteAddr, tt.forwardedFor))
			assert.Equal(t, tt.want, got)
		})
	}
}
