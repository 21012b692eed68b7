package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// privateProxies are the networks a reverse proxy in front of the API is
// expected to live in.
var privateProxies = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// ClientResolver finds the address a request came from. Forwarding headers
// count only when the direct peer is a trusted proxy.
type ClientResolver struct {
	trusted []netip.Prefix
}

// NewClientResolver trusts the private networks plus every CIDR in extra.
// Invalid entries are reported together and the valid ones still apply.
func NewClientResolver(extra ...string) (*ClientResolver, error) {
	c := &ClientResolver{}
	var errs []error
	for _, cidr := range append(append([]string(nil), privateProxies...), extra...) {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			errs = append(errs, fmt.Errorf("trusted proxy %q: %w", cidr, err))
			continue
		}
		c.trusted = append(c.trusted, p.Masked())
	}
	return c, errors.Join(errs...)
}

// ClientIP returns the client address of r.
func (c *ClientResolver) ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !c.isTrusted(addr.Unmap()) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.String()
		}
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.String()
	}
	return peer
}

func (c *ClientResolver) isTrusted(addr netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
