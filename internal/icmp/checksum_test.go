package icmp

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		// RFC 1071 section 3 example: sum ddf2, complement 220d.
		{"rfc1071", []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}, 0x220d},
		{"empty", nil, 0xffff},
		{"odd length pads low byte", []byte{0x01}, ^uint16(0x0100)},
		{"end-around carry", []byte{0xff, 0xff, 0x00, 0x01}, ^uint16(0x0001)},
		{"echo request id 0 seq 0", []byte{8, 0, 0, 0, 0, 0, 0, 0}, 0xf7ff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(% x) = %#04x, want %#04x", tt.data, got, tt.want)
			}
		})
	}
}

func TestChecksum_VerifiesToZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for size := 0; size <= 200; size++ {
		data := make([]byte, size)
		rng.Read(data)

		b := NewEchoBuilder()
		b.SetIdentifier(uint16(rng.Intn(0x10000)))
		b.SetSequence(uint16(rng.Intn(0x10000)))
		if err := b.SetPayload(data); err != nil {
			t.Fatalf("SetPayload(%d bytes) error = %v", size, err)
		}
		pkt := b.Finalize()

		if got := Checksum(pkt.Bytes()); got != 0 {
			t.Fatalf("payload size %d: checksum over finalized packet = %#04x, want 0", size, got)
		}
	}
}

func TestChecksum_DetectsCorruption(t *testing.T) {
	b := NewEchoBuilder()
	b.SetIdentifier(7)
	b.SetSequence(3)
	if err := b.SetPayload([]byte("test")); err != nil {
		t.Fatal(err)
	}
	raw := b.Finalize().Bytes()

	raw[HeaderLen] ^= 0x01
	if Checksum(raw) == 0 {
		t.Error("Checksum() should not verify after a bit flip")
	}

	// Restore and break the stored checksum instead.
	raw[HeaderLen] ^= 0x01
	binary.BigEndian.PutUint16(raw[2:4], binary.BigEndian.Uint16(raw[2:4])+1)
	if Checksum(raw) == 0 {
		t.Error("Checksum() should not verify with a wrong checksum field")
	}
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, HeaderLen+DefaultDataLen)
	for i := 0; i < b.N; i++ {
		_ = Checksum(data)
	}
}
