package transport

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/reglet-dev/scriptnet/domain/errors"
)

// AddressPolicy decides whether an outbound connection target is allowed.
// It is the SSRF guard used by the pinned dialer: the hostname is resolved
// once, the address is checked, and the dial goes to exactly that address.
type AddressPolicy struct {
	// Resolver is used for lookups. Nil uses net.DefaultResolver.
	Resolver *net.Resolver

	// Allowlist entries (hostname, *.suffix, IP or CIDR) bypass every other rule.
	Allowlist []string

	// Blocklist entries are rejected before the built-in rules run.
	Blocklist []string

	// AllowPrivate permits RFC 1918, loopback and link-local targets.
	AllowPrivate bool
}

// Resolve looks up host and returns the first address the policy allows to
// be dialled. It fails with a *errors.TransportError of kind SSRFBlocked when
// the target is refused and DNSFailure when the lookup fails.
func (p *AddressPolicy) Resolve(ctx context.Context, host string) (net.IP, error) {
	for _, pattern := range p.Allowlist {
		if matchesPattern(host, pattern) {
			return p.lookup(ctx, host)
		}
	}
	for _, pattern := range p.Blocklist {
		if matchesPattern(host, pattern) {
			return nil, blocked("address in blocklist: %s", host)
		}
	}

	ip, err := p.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if reason := p.checkIP(ip); reason != "" {
		return nil, blocked("%s (%s -> %s)", reason, host, ip)
	}
	return ip, nil
}

func (p *AddressPolicy) lookup(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip, nil
	}
	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, &errors.TransportError{Kind: errors.DNSFailure, Err: err}
	}
	if len(addrs) == 0 {
		return nil, &errors.TransportError{Kind: errors.DNSFailure, Err: fmt.Errorf("no addresses for %s", host)}
	}
	return addrs[0].IP, nil
}

// checkIP returns a non-empty reason when ip must not be dialled.
func (p *AddressPolicy) checkIP(ip net.IP) string {
	for _, pattern := range p.Blocklist {
		if _, cidr, err := net.ParseCIDR(pattern); err == nil && cidr.Contains(ip) {
			return "IP in blocklist CIDR"
		}
	}
	for _, pattern := range p.Allowlist {
		if _, cidr, err := net.ParseCIDR(pattern); err == nil && cidr.Contains(ip) {
			return ""
		}
	}

	switch {
	case ip.IsUnspecified():
		return "unspecified address blocked"
	case ip.IsMulticast():
		return "multicast addresses blocked"
	case p.AllowPrivate:
		return ""
	case ip.IsLoopback():
		return "localhost/loopback addresses blocked"
	case ip.IsPrivate():
		return "private addresses blocked (RFC 1918)"
	case ip.IsLinkLocalUnicast():
		return "link-local addresses blocked"
	}
	return ""
}

func blocked(format string, args ...any) error {
	return &errors.TransportError{Kind: errors.SSRFBlocked, Err: fmt.Errorf(format, args...)}
}

// matchesPattern checks if a host matches a pattern (hostname, *.suffix, IP or CIDR).
func matchesPattern(host, pattern string) bool {
	if host == pattern {
		return true
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:]) {
		return true
	}

	if ip := net.ParseIP(host); ip != nil {
		if _, cidr, err := net.ParseCIDR(pattern); err == nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}
