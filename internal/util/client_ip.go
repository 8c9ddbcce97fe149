package util

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of load balancer addresses whose forwarding
// headers may be believed.
type TrustedProxies struct {
	nets []*net.IPNet
}

// NewTrustedProxies parses a list of IPs or CIDR ranges. An empty list
// returns nil, which ClientIP treats as "trust no proxy".
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var nets []*net.IPNet
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		ipNet, err := parseProxyEntry(entry)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, nil
	}
	return &TrustedProxies{nets: nets}, nil
}

func parseProxyEntry(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, cidr, err := net.ParseCIDR(entry)
		return cidr, err
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", entry)
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (t *TrustedProxies) contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address rate limits and audit logs attribute the
// request to. Without trusted proxies that is the TCP peer. Behind a
// trusted proxy the X-Forwarded-For chain is walked right to left and the
// first hop that is not itself a trusted proxy wins, so a client cannot
// dodge its limit by prepending fake entries.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer := parseHostIP(r.RemoteAddr)
	if peer == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.contains(peer) {
		return peer.String()
	}
	chain := forwardedChain(r.Header.Get("X-Forwarded-For"), peer)
	for i := len(chain) - 1; i >= 0; i-- {
		if !trusted.contains(chain[i]) {
			return chain[i].String()
		}
	}
	// Every hop is a trusted proxy; the leftmost is the closest thing to
	// a client address we have.
	return chain[0].String()
}

func forwardedChain(header string, peer net.IP) []net.IP {
	var chain []net.IP
	for _, part := range strings.Split(header, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			chain = append(chain, ip)
		}
	}
	return append(chain, peer)
}

func parseHostIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}
