//go:build linux || darwin

package icmp

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type socketConn struct {
	fd             int
	headerIncluded bool
}

func openSocket(mode Mode) (*socketConn, error) {
	typ := unix.SOCK_DGRAM
	if mode == ModeRaw {
		typ = unix.SOCK_RAW
	}

	fd, err := unix.Socket(unix.AF_INET, typ, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	c := &socketConn{
		fd:             fd,
		headerIncluded: mode == ModeRaw || dgramIncludesIPHeader,
	}
	if err := c.init(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return c, nil
}

func (c *socketConn) Connect(addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("connect: %s is not IPv4", addr)
	}
	sa := &unix.SockaddrInet4{Addr: addr.As4()}
	if err := unix.Connect(c.fd, sa); err != nil {
		return os.NewSyscallError("connect", err)
	}
	return nil
}

func (c *socketConn) Write(b []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

func (c *socketConn) SetReadTimeout(d time.Duration) error {
	// A zero timeval means no timeout, so round tiny durations up.
	if d > 0 && d < time.Microsecond {
		d = time.Microsecond
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

func (c *socketConn) HeaderIncluded() bool {
	return c.headerIncluded
}

func (c *socketConn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// readError maps an expired SO_RCVTIMEO to os.ErrDeadlineExceeded.
func readError(op string, err error) error {
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
		return fmt.Errorf("%s: %w", op, os.ErrDeadlineExceeded)
	}
	return os.NewSyscallError(op, err)
}
