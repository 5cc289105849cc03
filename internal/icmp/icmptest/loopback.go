// Package icmptest provides an in-memory ICMP transport for tests.
package icmptest

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ErrBlocked is returned by ReadMsg when nothing is queued and the read
// timeout is zero. A real socket would block forever at that point.
var ErrBlocked = errors.New("icmptest: read would block forever")

// Loopback answers every Echo Request written to it with an Echo Reply,
// the way a responsive host would. It satisfies the icmp.Conn interface.
type Loopback struct {
	mu sync.Mutex

	// TTL is written into the reply's IPv4 header, or reported out of
	// band when HeaderIncluded is false.
	TTL int

	// Header controls whether replies carry an IPv4 header.
	Header bool

	// Delay is slept before each read returns a datagram.
	Delay time.Duration

	// EchoRequests makes the loopback deliver a copy of each request
	// before its reply, like a raw socket pinging 127.0.0.1.
	EchoRequests bool

	// Silent drops requests so every read times out.
	Silent bool

	// DropSeqs drops requests with these sequence numbers.
	DropSeqs map[uint16]bool

	// Injected datagrams are delivered before any reply.
	Injected [][]byte

	// Errors returned by the corresponding operations when set.
	ConnectErr error
	WriteErr   error
	ReadErr    error

	// ShortWrite makes Write report one byte less than requested.
	ShortWrite bool

	// OnEmptyRead is called, without the lock held, each time a read
	// finds nothing queued.
	OnEmptyRead func()

	peer     netip.Addr
	queue    [][]byte
	writes   [][]byte
	timeout  time.Duration
	timeouts []time.Duration
	closed   int
}

// NewLoopback returns a Loopback that includes IPv4 headers with TTL 64.
func NewLoopback() *Loopback {
	return &Loopback{TTL: 64, Header: true}
}

func (l *Loopback) Connect(addr netip.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ConnectErr != nil {
		return l.ConnectErr
	}
	l.peer = addr
	return nil
}

func (l *Loopback) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.WriteErr != nil {
		return 0, l.WriteErr
	}
	if !l.peer.IsValid() {
		return 0, errors.New("write: not connected")
	}
	l.writes = append(l.writes, append([]byte(nil), b...))

	msg, err := icmp.ParseMessage(1, b)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok || msg.Type != ipv4.ICMPTypeEcho {
		return len(b), nil
	}

	if l.Silent || l.DropSeqs[uint16(echo.Seq)] {
		return len(b), nil
	}
	if l.EchoRequests {
		l.queue = append(l.queue, l.frame(b))
	}

	reply := icmp.Message{Type: ipv4.ICMPTypeEchoReply, Code: 0, Body: echo}
	rb, err := reply.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	l.queue = append(l.queue, l.frame(rb))

	if l.ShortWrite {
		return len(b) - 1, nil
	}
	return len(b), nil
}

// frame prepends an IPv4 header from the peer when Header is set.
func (l *Loopback) frame(msg []byte) []byte {
	if !l.Header {
		return msg
	}
	return Frame(l.peer, l.TTL, msg)
}

// ReadMsg returns the next queued datagram. With nothing queued it fails
// immediately: with os.ErrDeadlineExceeded when a read timeout is set,
// otherwise with ErrBlocked.
func (l *Loopback) ReadMsg(b []byte) (int, int, error) {
	l.mu.Lock()

	if l.ReadErr != nil {
		l.mu.Unlock()
		return 0, -1, l.ReadErr
	}

	var next []byte
	switch {
	case len(l.Injected) > 0:
		next, l.Injected = l.Injected[0], l.Injected[1:]
	case len(l.queue) > 0:
		next, l.queue = l.queue[0], l.queue[1:]
	default:
		timeout, hook := l.timeout, l.OnEmptyRead
		l.mu.Unlock()
		if hook != nil {
			hook()
		}
		if timeout == 0 {
			return 0, -1, ErrBlocked
		}
		return 0, -1, fmt.Errorf("read: %w", os.ErrDeadlineExceeded)
	}
	defer l.mu.Unlock()

	if l.Delay > 0 {
		time.Sleep(l.Delay)
	}

	n := copy(b, next)
	ttl := -1
	if !l.Header {
		ttl = l.TTL
	}
	return n, ttl, nil
}

func (l *Loopback) SetReadTimeout(d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timeout = d
	l.timeouts = append(l.timeouts, d)
	return nil
}

func (l *Loopback) HeaderIncluded() bool {
	return l.Header
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed++
	return nil
}

// Writes returns copies of every datagram written.
func (l *Loopback) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([][]byte(nil), l.writes...)
}

// Timeouts returns every read timeout that was set.
func (l *Loopback) Timeouts() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]time.Duration(nil), l.timeouts...)
}

// Closed returns how many times Close was called.
func (l *Loopback) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

// Frame wraps an ICMP message in an IPv4 header sent from src.
func Frame(src netip.Addr, ttl int, msg []byte) []byte {
	h := ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(msg),
		TTL:      ttl,
		Protocol: 1,
		Src:      net.IP(src.AsSlice()),
		Dst:      net.IPv4(127, 0, 0, 1),
	}
	hb, err := h.Marshal()
	if err != nil {
		panic(err)
	}
	return append(hb, msg...)
}
