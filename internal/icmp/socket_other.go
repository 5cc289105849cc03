//go:build !linux && !darwin

package icmp

import (
	"fmt"
	"runtime"
)

func openSocket(mode Mode) (Conn, error) {
	return nil, fmt.Errorf("%s ICMP sockets are not supported on %s", mode, runtime.GOOS)
}
