package icmp

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/ipv4"
)

const (
	// HeaderLen is the size of the ICMP echo header.
	HeaderLen = 8

	// DefaultDataLen is the echo payload size used by common ping tools.
	DefaultDataLen = 56

	// MaxPayloadLen keeps an echo request inside a 1500 byte MTU.
	MaxPayloadLen = 1500 - ipv4.HeaderLen - HeaderLen

	maxPacketLen = HeaderLen + MaxPayloadLen
)

// EchoBuilder assembles an ICMP Echo Request in a fixed-size buffer.
// Fields are set through named setters; Finalize computes the checksum
// and returns an immutable Packet. The zero value is not usable, use
// NewEchoBuilder.
type EchoBuilder struct {
	buf [maxPacketLen]byte
	n   int
}

// NewEchoBuilder returns a builder for an Echo Request with code 0,
// identifier 0, sequence 0 and an empty payload.
func NewEchoBuilder() *EchoBuilder {
	b := &EchoBuilder{}
	b.Reset()
	return b
}

// Reset clears all fields back to an empty Echo Request.
func (b *EchoBuilder) Reset() {
	b.buf = [maxPacketLen]byte{}
	b.buf[0] = byte(ipv4.ICMPTypeEcho)
	b.n = HeaderLen
}

// SetIdentifier sets the echo identifier.
func (b *EchoBuilder) SetIdentifier(id uint16) {
	binary.BigEndian.PutUint16(b.buf[4:6], id)
}

// SetSequence sets the echo sequence number.
func (b *EchoBuilder) SetSequence(seq uint16) {
	binary.BigEndian.PutUint16(b.buf[6:8], seq)
}

// SetPayload copies p into the packet after the header.
func (b *EchoBuilder) SetPayload(p []byte) error {
	if len(p) > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(p), MaxPayloadLen)
	}
	clear(b.buf[HeaderLen:b.n])
	b.n = HeaderLen + copy(b.buf[HeaderLen:], p)
	return nil
}

// Len returns the serialized length: header plus payload.
func (b *EchoBuilder) Len() int {
	return b.n
}

// Finalize checksums the current contents and returns them as a Packet.
// The builder stays usable; later setter calls do not affect packets
// already returned.
func (b *EchoBuilder) Finalize() Packet {
	b.buf[2], b.buf[3] = 0, 0
	binary.BigEndian.PutUint16(b.buf[2:4], Checksum(b.buf[:b.n]))

	out := make([]byte, b.n)
	copy(out, b.buf[:b.n])
	return Packet{b: out}
}

// Packet is a finalized, checksummed ICMP Echo Request.
type Packet struct {
	b []byte
}

// Len returns the packet length in bytes.
func (p Packet) Len() int { return len(p.b) }

// Bytes returns a copy of the wire representation.
func (p Packet) Bytes() []byte {
	out := make([]byte, len(p.b))
	copy(out, p.b)
	return out
}

// Identifier returns the echo identifier.
func (p Packet) Identifier() uint16 { return binary.BigEndian.Uint16(p.b[4:6]) }

// Sequence returns the echo sequence number.
func (p Packet) Sequence() uint16 { return binary.BigEndian.Uint16(p.b[6:8]) }

// Checksum returns the checksum stored in the header.
func (p Packet) Checksum() uint16 { return binary.BigEndian.Uint16(p.b[2:4]) }

// PayloadLen returns the number of bytes after the header.
func (p Packet) PayloadLen() int { return len(p.b) - HeaderLen }
