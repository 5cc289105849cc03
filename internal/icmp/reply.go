package icmp

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/ipv4"
)

// Reply is a read-only view of the ICMP message in a received datagram.
//
// ID and Seq are only meaningful for echo messages; for error messages
// they hold the unused header bytes.
type Reply struct {
	Type     ipv4.ICMPType
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
	Data     []byte
}

// IsEchoReply reports whether the message is an Echo Reply.
func (r Reply) IsEchoReply() bool {
	return r.Type == ipv4.ICMPTypeEchoReply
}

// DecodeReply parses a received datagram. When headerIncluded is true the
// datagram starts with an IPv4 header, which is returned; otherwise the
// datagram is the bare ICMP message and the returned header is nil.
//
// Returned slices alias b.
func DecodeReply(b []byte, headerIncluded bool) (*ipv4.Header, Reply, error) {
	var hdr *ipv4.Header
	msg := b

	if headerIncluded {
		if len(b) < ipv4.HeaderLen {
			return nil, Reply{}, fmt.Errorf("%w: %d bytes, IPv4 header needs %d",
				ErrMalformedReply, len(b), ipv4.HeaderLen)
		}
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return nil, Reply{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
		}
		if h.Version != ipv4.Version || h.Len < ipv4.HeaderLen {
			return nil, Reply{}, fmt.Errorf("%w: bad IPv4 version/IHL byte %#02x",
				ErrMalformedReply, b[0])
		}
		hdr = h
		msg = b[h.Len:]
	}

	if len(msg) < HeaderLen {
		return nil, Reply{}, fmt.Errorf("%w: %d bytes, need %d",
			ErrMalformedReply, len(b), len(b)-len(msg)+HeaderLen)
	}

	r := Reply{
		Type:     ipv4.ICMPType(msg[0]),
		Code:     msg[1],
		Checksum: binary.BigEndian.Uint16(msg[2:4]),
		ID:       binary.BigEndian.Uint16(msg[4:6]),
		Seq:      binary.BigEndian.Uint16(msg[6:8]),
		Data:     msg[HeaderLen:],
	}
	return hdr, r, nil
}
