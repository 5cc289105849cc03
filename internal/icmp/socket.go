package icmp

import (
	"net/netip"
	"time"
)

// Conn is the datagram transport a Session drives. The socket
// implementation in this package satisfies it; tests substitute their own.
type Conn interface {
	// Connect sets the default peer for Write and filters reads to it.
	Connect(addr netip.Addr) error

	// Write sends one datagram to the connected peer.
	Write(b []byte) (int, error)

	// ReadMsg reads one datagram into b. ttl is the TTL reported out of
	// band by the kernel, or -1 when unavailable. A read that hits the
	// read timeout returns an error matching os.ErrDeadlineExceeded.
	ReadMsg(b []byte) (n int, ttl int, err error)

	// SetReadTimeout bounds subsequent reads. Zero blocks indefinitely.
	SetReadTimeout(d time.Duration) error

	// HeaderIncluded reports whether received datagrams start with the
	// IPv4 header.
	HeaderIncluded() bool

	// Close releases the socket.
	Close() error
}

// NewSocket opens an IPv4 ICMP socket of the given mode.
func NewSocket(mode Mode) (Conn, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	c, err := openSocket(mode)
	if err != nil {
		return nil, err
	}
	return c, nil
}
