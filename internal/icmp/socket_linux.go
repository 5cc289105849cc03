package icmp

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// Linux ping sockets deliver the bare ICMP message; the TTL arrives as an
// IP_TTL control message once IP_RECVTTL is enabled.
const dgramIncludesIPHeader = false

func (c *socketConn) init() error {
	if c.headerIncluded {
		return nil
	}
	if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_IP, unix.IP_RECVTTL, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

func (c *socketConn) ReadMsg(b []byte) (int, int, error) {
	oob := make([]byte, unix.CmsgSpace(4))
	for {
		n, oobn, _, _, err := unix.Recvmsg(c.fd, b, oob, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, -1, readError("recvmsg", err)
		}
		return n, parseTTL(oob[:oobn]), nil
	}
}

func parseTTL(oob []byte) int {
	if len(oob) == 0 {
		return -1
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return -1
	}
	for _, m := range msgs {
		if m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_TTL && len(m.Data) >= 4 {
			return int(binary.NativeEndian.Uint32(m.Data[:4]))
		}
	}
	return -1
}
