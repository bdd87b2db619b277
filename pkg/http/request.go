package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig names the proxy ranges whose forwarding headers we accept.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// trusts reports whether remote sits inside one of the configured
// proxy ranges. Unparseable entries are skipped, never failed open.
func (c *IPConfig) trusts(remote string) bool {
	if c == nil || len(c.TrustedProxies) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, cidr := range c.TrustedProxies {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// maxUserAgentLen bounds the client signature we derive from the
// User-Agent header so a hostile client cannot bloat attempt records.
const maxUserAgentLen = 512

// ExtractClientIP resolves the address a request really came from.
// X-Forwarded-For and X-Real-IP are client-controlled unless a proxy
// we operate set them, so they are honored only when the direct peer
// is a trusted proxy. Everything else resolves to RemoteAddr.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote := remoteHost(r)

	if config.trusts(remote) {
		// Each proxy hop appends to X-Forwarded-For; the first entry
		// that parses is the original client
		for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			hop = strings.TrimSpace(hop)
			if _, err := netip.ParseAddr(hop); err == nil {
				return hop
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if _, err := netip.ParseAddr(xri); err == nil {
				return xri
			}
		}
	}

	return remote
}

// ClientSignature returns the raw client signature string for the
// request: the User-Agent header, length-bounded, or "unknown" when
// the header is absent.
func ClientSignature(r *http.Request) string {
	ua := strings.TrimSpace(r.Header.Get("User-Agent"))
	if ua == "" {
		return "unknown"
	}
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return ua
}

// remoteHost strips the port from RemoteAddr. The address is not
// guaranteed to carry one, in which case it is used as-is.
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
