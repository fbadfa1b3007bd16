package middleware

import (
	"net"
	"strings"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// ClientIPExtractor resolves the real client IP of a request, honoring
// X-Forwarded-For only when the direct peer is a trusted proxy. With
// no trusted proxies configured only the remote address is used, which
// prevents IP spoofing through forged headers.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates an extractor trusting the given proxy
// CIDRs. Single IP addresses are accepted too; invalid entries are
// skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the client IP for the request. When the remote
// address belongs to a trusted proxy the X-Forwarded-For chain is
// walked right to left and the first untrusted hop wins.
func (e *ClientIPExtractor) Extract(req *pipeline.Request) string {
	remoteIP := stripPort(req.RemoteAddr)

	if len(e.trustedCIDRs) == 0 {
		return remoteIP
	}
	if !e.isTrusted(remoteIP) {
		return remoteIP
	}
	return e.extractFromForwarded(req, remoteIP)
}

func (e *ClientIPExtractor) extractFromForwarded(req *pipeline.Request, fallback string) string {
	forwarded := req.Header.Get(HeaderXForwardedFor)
	if forwarded == "" {
		return fallback
	}

	hops := strings.Split(forwarded, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(hops[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}

	// Every hop in the chain is a trusted proxy.
	return fallback
}

func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from "host:port" and "[host]:port"
// address forms.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
