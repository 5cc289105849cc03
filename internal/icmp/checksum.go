package icmp

// Checksum returns the Internet checksum (RFC 1071) of b: the one's
// complement of the one's complement sum of its 16-bit big-endian words.
// An odd trailing byte is the high byte of a zero-padded word.
//
// Running Checksum over a packet that already carries a valid checksum
// yields zero.
func Checksum(b []byte) uint16 {
	var sum uint32

	even := len(b) &^ 1
	for i := 0; i < even; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)&1 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}

	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
