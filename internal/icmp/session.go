package icmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/postalsys/muti-ping/internal/logging"
	"github.com/postalsys/muti-ping/internal/payload"
)

// maxReplyLen fits an IPv4 header plus the largest echo we send.
const maxReplyLen = ipv4.HeaderLen + maxPacketLen

// pollInterval bounds a single blocking read while a cancellable context
// is waiting on the reply.
const pollInterval = 100 * time.Millisecond

// SessionState represents the state of an echo session.
type SessionState int

const (
	// StateOpen means the socket is acquired but has no peer yet.
	StateOpen SessionState = iota
	// StateConnected means the session can send echo requests.
	StateConnected
	// StateClosed means the socket has been released.
	StateClosed
)

// String returns a human-readable name for the state.
func (s SessionState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one echo exchange.
type Result struct {
	// BytesReceived is the size of the datagram read from the socket.
	BytesReceived int
	// RoundTrip is the time between sending the request and reading the reply.
	RoundTrip time.Duration
	// TTL is taken from the reply's IPv4 header.
	TTL uint8
	// Code is the ICMP code of the reply.
	Code uint8

	Type ipv4.ICMPType
	ID   uint16
	Seq  uint16
	From netip.Addr

	// SentAt is the send time echoed back in the payload. Zero when the
	// reply does not carry one of our payloads.
	SentAt time.Time
}

// Session exchanges echo requests and replies with one destination over a
// single socket. A Session is not safe for concurrent use.
type Session struct {
	conn   Conn
	config Config
	logger *slog.Logger

	state SessionState
	peer  netip.Addr

	builder *EchoBuilder
	last    Packet
	sentAt  time.Time
	pending bool

	rbuf [maxReplyLen]byte
}

// Open acquires an ICMP socket for cfg.Mode. The caller must Close the
// session on every path.
func Open(cfg Config, logger *slog.Logger) (*Session, error) {
	conn, err := NewSocket(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}
	return OpenConn(conn, cfg, logger), nil
}

// OpenConn wraps an already open Conn.
func OpenConn(conn Conn, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Session{
		conn:    conn,
		config:  cfg,
		logger:  logger.With(slog.String(logging.KeyComponent, "icmp")),
		state:   StateOpen,
		builder: NewEchoBuilder(),
	}
	s.logger.Debug("ICMP socket opened",
		slog.String(logging.KeyMode, string(cfg.Mode)),
		slog.Bool("header_included", conn.HeaderIncluded()))
	return s
}

// State returns the current state.
func (s *Session) State() SessionState {
	return s.state
}

// Connect sets the destination for subsequent echo requests. ICMP has no
// ports and no handshake, so success does not imply the peer is reachable.
func (s *Session) Connect(addr netip.Addr) error {
	if s.state == StateClosed {
		return fmt.Errorf("%w: session closed", ErrUnreachable)
	}
	if !addr.Is4() {
		return fmt.Errorf("%w: %s", ErrAddressParse, addr)
	}
	if !s.config.IsDestinationAllowed(addr) {
		return fmt.Errorf("%w: %s", ErrDestinationNotAllowed, addr)
	}
	if err := s.conn.Connect(addr); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, addr, err)
	}

	s.peer = addr
	s.state = StateConnected
	s.logger.Debug("ICMP session connected", slog.String(logging.KeyAddress, addr.String()))
	return nil
}

// SendEcho builds, checksums and transmits an Echo Request. The round-trip
// clock starts immediately before the write.
func (s *Session) SendEcho(id, seq uint16, data []byte) (Packet, error) {
	if s.state != StateConnected {
		return Packet{}, fmt.Errorf("%w: session is %s", ErrSend, s.state)
	}

	s.builder.Reset()
	s.builder.SetIdentifier(id)
	s.builder.SetSequence(seq)
	if err := s.builder.SetPayload(data); err != nil {
		return Packet{}, fmt.Errorf("%w: %w", ErrSend, err)
	}
	pkt := s.builder.Finalize()

	start := time.Now()
	n, err := s.conn.Write(pkt.b)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %w", ErrSend, err)
	}
	if n != pkt.Len() {
		return Packet{}, fmt.Errorf("%w: wrote %d of %d bytes", ErrSend, n, pkt.Len())
	}

	s.last = pkt
	s.sentAt = start
	s.pending = true

	s.logger.Debug("echo request sent",
		slog.Int(logging.KeyID, int(id)),
		slog.Int(logging.KeySeq, int(seq)),
		slog.Int(logging.KeyBytes, n))
	return pkt, nil
}

// ReceiveReply waits for the reply to the last request. A zero timeout
// blocks until a datagram arrives.
//
// Only one datagram is consumed unless Config.MatchReplies is set, in
// which case unrelated datagrams are skipped until the timeout expires.
func (s *Session) ReceiveReply(timeout time.Duration) (Result, error) {
	return s.ReceiveReplyContext(context.Background(), timeout)
}

// ReceiveReplyContext is ReceiveReply that also returns once ctx is done.
// When ctx can be cancelled the socket is read in slices of at most
// pollInterval and ctx is checked between them. The error then wraps
// ctx.Err() and is not a per-request error.
func (s *Session) ReceiveReplyContext(ctx context.Context, timeout time.Duration) (Result, error) {
	if s.state != StateConnected || !s.pending {
		return Result{}, fmt.Errorf("%w: no echo request outstanding", ErrReceive)
	}
	cancellable := ctx.Done() != nil

	var deadline time.Time
	if timeout > 0 {
		deadline = s.sentAt.Add(timeout)
	}
	limit := ipv4.HeaderLen + s.last.Len()

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("waiting for echo reply: %w", err)
		}

		wait := time.Duration(0)
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return Result{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
		}
		slice := wait
		if cancellable && (slice == 0 || slice > pollInterval) {
			slice = pollInterval
		}
		if err := s.conn.SetReadTimeout(slice); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrReceive, err)
		}

		n, ttl, err := s.conn.ReadMsg(s.rbuf[:limit])
		received := time.Now()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if slice != wait || ctx.Err() != nil {
					continue
				}
				return Result{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return Result{}, fmt.Errorf("%w: %w", ErrReceive, err)
		}

		hdr, reply, err := DecodeReply(s.rbuf[:n], s.conn.HeaderIncluded())
		if err != nil {
			return Result{}, err
		}

		if s.config.MatchReplies && !s.matches(reply) {
			s.logger.Debug("skipping unrelated ICMP message",
				slog.String("type", reply.Type.String()),
				slog.Int(logging.KeyID, int(reply.ID)),
				slog.Int(logging.KeySeq, int(reply.Seq)))
			continue
		}

		s.pending = false
		return s.result(n, received, ttl, hdr, reply), nil
	}
}

func (s *Session) matches(r Reply) bool {
	switch r.Type {
	case ipv4.ICMPTypeEcho:
		return false
	case ipv4.ICMPTypeEchoReply:
		if r.Seq != s.last.Sequence() {
			return false
		}
		// Linux ping sockets rewrite the identifier to the socket's port.
		if s.config.Mode == ModeRaw && r.ID != s.last.Identifier() {
			return false
		}
		return true
	default:
		return true
	}
}

func (s *Session) result(n int, received time.Time, ttl int, hdr *ipv4.Header, r Reply) Result {
	res := Result{
		BytesReceived: n,
		RoundTrip:     received.Sub(s.sentAt),
		Code:          r.Code,
		Type:          r.Type,
		ID:            r.ID,
		Seq:           r.Seq,
		From:          s.peer,
	}

	switch {
	case hdr != nil:
		res.TTL = uint8(hdr.TTL)
		if src, ok := netip.AddrFromSlice(hdr.Src.To4()); ok {
			res.From = src
		}
	case ttl >= 0:
		res.TTL = uint8(ttl)
	}

	if r.IsEchoReply() {
		if ts, _, err := payload.Decode(r.Data); err == nil {
			res.SentAt = ts.Time()
		}
	}
	return res
}

// Close releases the socket. It is safe to call more than once.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.pending = false
	s.logger.Debug("ICMP socket closed")
	return s.conn.Close()
}
