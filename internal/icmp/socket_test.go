package icmp

import (
	"errors"
	"net/netip"
	"runtime"
	"testing"
	"time"

	"github.com/postalsys/muti-ping/internal/payload"
)

func openLiveSession(t *testing.T, mode Mode) *Session {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skipf("ICMP sockets are not supported on %s", runtime.GOOS)
	}

	cfg := DefaultConfig()
	cfg.Mode = mode
	s, err := Open(cfg, nil)
	if err != nil {
		// Expected without ping_group_range or CAP_NET_RAW.
		t.Skipf("Open(%s) failed (may need privileges): %v", mode, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSocket_InvalidMode(t *testing.T) {
	conn, err := NewSocket(Mode("stream"))
	if err == nil {
		conn.Close()
		t.Fatal("NewSocket() should fail for an unknown mode")
	}
	if conn != nil {
		t.Error("NewSocket() returned a non-nil Conn with an error")
	}
}

func TestOpen_WrapsSocketError(t *testing.T) {
	_, err := Open(Config{Mode: Mode("stream")}, nil)
	if !errors.Is(err, ErrSocket) {
		t.Errorf("Open() error = %v, want ErrSocket", err)
	}
}

func TestLiveEcho_Loopback(t *testing.T) {
	for _, mode := range []Mode{ModeDatagram, ModeRaw} {
		t.Run(string(mode), func(t *testing.T) {
			s := openLiveSession(t, mode)

			if err := s.Connect(netip.MustParseAddr("127.0.0.1")); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}

			data, err := payload.Build([]byte("test"))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.SendEcho(0, 0, data); err != nil {
				t.Fatalf("SendEcho() error = %v", err)
			}

			res, err := s.ReceiveReply(2 * time.Second)
			if err != nil {
				t.Fatalf("ReceiveReply() error = %v", err)
			}
			if res.BytesReceived <= 0 {
				t.Errorf("BytesReceived = %d, want > 0", res.BytesReceived)
			}
			if res.TTL == 0 {
				t.Error("TTL = 0, want > 0")
			}
			if res.RoundTrip <= 0 {
				t.Errorf("RoundTrip = %v, want > 0", res.RoundTrip)
			}
			if !res.SentAt.IsZero() && res.SentAt.After(time.Now()) {
				t.Errorf("SentAt = %v is in the future", res.SentAt)
			}
		})
	}
}

func TestLiveSocket_ReadTimeout(t *testing.T) {
	s := openLiveSession(t, ModeDatagram)

	// TEST-NET-3 is never routed, so either connect fails or no reply arrives.
	if err := s.Connect(netip.MustParseAddr("203.0.113.1")); err != nil {
		t.Skipf("Connect() failed: %v", err)
	}
	if _, err := s.SendEcho(0, 0, nil); err != nil {
		t.Skipf("SendEcho() failed: %v", err)
	}

	start := time.Now()
	_, err := s.ReceiveReply(100 * time.Millisecond)
	if err == nil {
		t.Skip("unexpected reply from TEST-NET-3")
	}
	if !IsProbeError(err) {
		t.Errorf("ReceiveReply() error = %v, want a per-probe error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ReceiveReply() took %v, timeout not honored", elapsed)
	}
}
