package util

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of peer addresses whose forwarded headers are
// believed. A nil value trusts nothing.
type TrustedProxies struct {
	ranges []*net.IPNet
}

// NewTrustedProxies builds the set from CIDR blocks or bare addresses.
// Empty input yields a nil set.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	ranges := make([]*net.IPNet, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, &net.ParseError{Type: "IP address", Text: entry}
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, block, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, block)
	}
	if len(ranges) == 0 {
		return nil, nil
	}
	return &TrustedProxies{ranges: ranges}, nil
}

// Contains reports whether ip falls inside any trusted range.
func (t *TrustedProxies) Contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, block := range t.ranges {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP resolves the originating client address for a request.
// X-Forwarded-For and X-Real-IP are consulted only when the direct peer is
// a trusted proxy; the forwarded chain is walked right to left until the
// first address outside the trusted set.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer := addrIP(r.RemoteAddr)
	if peer == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.Contains(peer) {
		return peer.String()
	}

	hops := forwardedChain(r.Header.Get("X-Forwarded-For"))
	if len(hops) > 0 {
		hops = append(hops, peer)
		for i := len(hops) - 1; i >= 0; i-- {
			if !trusted.Contains(hops[i]) {
				return hops[i].String()
			}
		}
		// Every hop is a trusted proxy; the leftmost is the best guess.
		return hops[0].String()
	}

	if realIP := addrIP(r.Header.Get("X-Real-IP")); realIP != nil {
		return realIP.String()
	}
	return peer.String()
}

func forwardedChain(header string) []net.IP {
	hops := make([]net.IP, 0, 4)
	for _, part := range strings.Split(header, ",") {
		if ip := addrIP(part); ip != nil {
			hops = append(hops, ip)
		}
	}
	return hops
}

// addrIP parses a bare IP or a host:port pair.
func addrIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return net.ParseIP(s)
}
