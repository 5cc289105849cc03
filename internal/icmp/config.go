package icmp

import (
	"fmt"
	"net/netip"
	"strings"
)

// Mode selects the kind of ICMP socket a session opens.
type Mode string

const (
	// ModeDatagram opens an unprivileged ping socket (SOCK_DGRAM).
	// On Linux this requires the net.ipv4.ping_group_range sysctl to
	// include the caller's group.
	ModeDatagram Mode = "dgram"

	// ModeRaw opens a raw ICMP socket (SOCK_RAW). Requires root or
	// CAP_NET_RAW.
	ModeRaw Mode = "raw"
)

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDatagram, ModeRaw:
		return m, nil
	default:
		return "", fmt.Errorf("invalid socket mode %q (must be dgram or raw)", s)
	}
}

// Config holds configuration for an echo session.
type Config struct {
	// Mode selects the socket type.
	Mode Mode

	// MatchReplies skips datagrams that do not answer the outstanding
	// request: our own looped-back Echo Request and Echo Replies for a
	// different identifier or sequence. ICMP error messages are always
	// accepted.
	MatchReplies bool

	// AllowedCIDRs restricts which destinations may be connected to.
	// Empty list means all destinations are allowed.
	AllowedCIDRs []netip.Prefix
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeDatagram,
		MatchReplies: true,
	}
}

// ParseCIDRs parses a list of IPv4 CIDR strings.
func ParseCIDRs(cidrs []string) ([]netip.Prefix, error) {
	result := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", c, err)
		}
		if !p.Addr().Is4() {
			return nil, fmt.Errorf("invalid CIDR %q: not IPv4", c)
		}
		result = append(result, p.Masked())
	}
	return result, nil
}

// IsDestinationAllowed checks addr against AllowedCIDRs.
func (c Config) IsDestinationAllowed(addr netip.Addr) bool {
	if !addr.Is4() {
		return false
	}
	if len(c.AllowedCIDRs) == 0 {
		return true
	}
	for _, p := range c.AllowedCIDRs {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
