package icmp

import "golang.org/x/sys/unix"

// Darwin ICMP datagram sockets deliver the IPv4 header like raw sockets do.
const dgramIncludesIPHeader = true

func (c *socketConn) init() error { return nil }

func (c *socketConn) ReadMsg(b []byte) (int, int, error) {
	for {
		n, err := unix.Read(c.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, -1, readError("read", err)
		}
		return n, -1, nil
	}
}
