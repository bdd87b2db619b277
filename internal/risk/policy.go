package risk

import "net"

// Policy decides whether a network address counts as suspicious. The
// default matches private and reserved ranges as a stand-in anomaly
// heuristic; deployments fronted by a real reputation feed can swap in
// their own implementation.
type Policy interface {
	Suspicious(address string) bool
}

// defaultSuspiciousCIDRs are private/reserved ranges.
var defaultSuspiciousCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

// CIDRPolicy matches addresses against a fixed set of CIDR ranges.
type CIDRPolicy struct {
	nets []*net.IPNet
}

// NewCIDRPolicy parses the given CIDR ranges. Invalid ranges are
// rejected rather than silently skipped so a typo cannot quietly
// disable the rule.
func NewCIDRPolicy(cidrs []string) (*CIDRPolicy, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipNet)
	}
	return &CIDRPolicy{nets: nets}, nil
}

// DefaultPolicy returns the private/reserved range policy.
func DefaultPolicy() *CIDRPolicy {
	policy, err := NewCIDRPolicy(defaultSuspiciousCIDRs)
	if err != nil {
		panic(err) // built-in ranges are static
	}
	return policy
}

// Suspicious reports whether the address falls in any configured
// range. Unparseable addresses match nothing.
func (p *CIDRPolicy) Suspicious(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	for _, ipNet := range p.nets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}
