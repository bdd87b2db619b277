package geo

import "net"

// Resolver maps a network address to a coarse location label. The
// security manager records the label on new sessions; it never makes
// decisions on it.
type Resolver interface {
	Locate(address string) string
}

// StubResolver is a static stand-in for a real geolocation service.
// Loopback and private ranges resolve to "internal", everything else
// to "external".
type StubResolver struct{}

func NewStubResolver() *StubResolver {
	return &StubResolver{}
}

func (r *StubResolver) Locate(address string) string {
	ip := net.ParseIP(address)
	if ip == nil {
		return "unknown"
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return "internal"
	}
	return "external"
}
