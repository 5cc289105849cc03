package icmp

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrAddressParse is returned for targets that are not IPv4 addresses.
	ErrAddressParse = errors.New("invalid IPv4 address")

	// ErrSocket is returned when the ICMP socket cannot be created,
	// typically because the process lacks the required privilege.
	ErrSocket = errors.New("cannot open ICMP socket")

	// ErrUnreachable is returned when connecting to the destination fails.
	ErrUnreachable = errors.New("destination unreachable")

	// ErrDestinationNotAllowed is returned for destinations outside Config.AllowedCIDRs.
	ErrDestinationNotAllowed = errors.New("destination not allowed")

	// ErrSend is returned when an echo request cannot be transmitted.
	ErrSend = errors.New("send echo request")

	// ErrReceive is returned when reading the reply fails.
	ErrReceive = errors.New("receive echo reply")

	// ErrTimeout is returned when no reply arrives before the read timeout.
	// It matches ErrReceive with errors.Is.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrReceive)

	// ErrMalformedReply is returned when a reply is too short to hold
	// the IPv4 and ICMP headers.
	ErrMalformedReply = errors.New("malformed reply")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadLen.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// IsProbeError reports whether err only affects a single probe. Such errors
// leave the session usable; everything else ends it.
func IsProbeError(err error) bool {
	return errors.Is(err, ErrReceive) || errors.Is(err, ErrMalformedReply)
}

// ParseTarget parses a dotted-quad IPv4 address.
func ParseTarget(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrAddressParse, s)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not IPv4", ErrAddressParse, s)
	}
	return addr, nil
}
