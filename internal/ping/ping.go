// Package ping drives an echo session through one or more probes and
// formats the console lines.
package ping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/postalsys/muti-ping/internal/icmp"
	"github.com/postalsys/muti-ping/internal/logging"
	"github.com/postalsys/muti-ping/internal/metrics"
	"github.com/postalsys/muti-ping/internal/payload"
)

// ipv4ICMPOverhead is the IPv4 plus ICMP header size added to the payload.
const ipv4ICMPOverhead = 20 + icmp.HeaderLen

// DefaultReplyTimeout bounds each receive of a repeated run when no
// timeout is configured.
const DefaultReplyTimeout = 5 * time.Second

// ErrNoReply is returned when a multi-probe run got no reply at all.
var ErrNoReply = errors.New("no reply received")

// Prober is the part of icmp.Session the runner drives.
type Prober interface {
	Connect(addr netip.Addr) error
	SendEcho(id, seq uint16, data []byte) (icmp.Packet, error)
	ReceiveReplyContext(ctx context.Context, timeout time.Duration) (icmp.Result, error)
}

// Config controls a run.
type Config struct {
	// Count is the number of probes. Zero and one both send a single probe
	// whose errors are all fatal.
	Count int

	// Interval paces repeated probes.
	Interval time.Duration

	// Timeout bounds each receive. Zero waits indefinitely when Count is
	// at most one and DefaultReplyTimeout otherwise.
	Timeout time.Duration

	// Size zero-fills shorter payloads to this many bytes.
	Size int

	// Body follows the timestamp in every payload.
	Body []byte

	// Identifier is the echo identifier.
	Identifier uint16
}

// Runner sends probes over a session and prints one line per probe.
type Runner struct {
	Session Prober
	Config  Config
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Out     io.Writer

	headerDone bool
}

// Run pings target. With a single probe any error is returned and nothing is
// printed. With several probes, receive errors only cost that probe a "no
// reply" line; the run fails with ErrNoReply if nothing answered.
//
// Cancelling ctx interrupts a pending receive. A single request then fails
// with ctx's error, while a repeated run stops and reports as if it had
// reached Count.
func (r *Runner) Run(ctx context.Context, target string) error {
	if r.Logger == nil {
		r.Logger = logging.NopLogger()
	}
	logger := r.Logger.With(slog.String(logging.KeyComponent, "ping"))

	addr, err := icmp.ParseTarget(target)
	if err != nil {
		return err
	}
	if err := r.Session.Connect(addr); err != nil {
		return err
	}
	r.headerDone = false

	if r.Config.Count <= 1 {
		res, data, err := r.probe(ctx, 0, r.Config.Timeout)
		if err != nil {
			if icmp.IsProbeError(err) {
				r.recordError(errorKind(err))
			}
			return err
		}
		r.printHeader(target, addr, len(data))
		r.printResult(res)
		return nil
	}

	limit := rate.Inf
	if r.Config.Interval > 0 {
		limit = rate.Every(r.Config.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	timeout := r.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}

	var sent, replies int
	for i := 0; i < r.Config.Count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				return fmt.Errorf("pacing probe %d: %w", i, err)
			}
			break
		}

		seq := uint16(i)
		res, data, err := r.probe(ctx, seq, timeout)
		if data != nil {
			sent++
		}
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			break
		}
		switch {
		case err == nil:
			replies++
			r.printHeader(target, addr, len(data))
			r.printResult(res)
		case icmp.IsProbeError(err):
			kind := errorKind(err)
			r.recordError(kind)
			logger.Info("probe got no reply",
				slog.Int(logging.KeySeq, int(seq)),
				slog.String(logging.KeyError, err.Error()))
			r.printHeader(target, addr, len(data))
			fmt.Fprintf(r.Out, "no reply from %s: icmp_seq=%d (%s)\n", addr, seq, reasons[kind])
		default:
			return err
		}
	}

	logger.Debug("run finished",
		slog.Int(logging.KeyCount, sent),
		slog.Int("replies", replies))

	if sent == 0 && ctx.Err() != nil {
		return ctx.Err()
	}
	if replies == 0 {
		return fmt.Errorf("%w from %s after %d probes", ErrNoReply, addr, sent)
	}
	return nil
}

// probe sends one echo request and waits for its reply. data is nil when
// nothing was sent.
func (r *Runner) probe(ctx context.Context, seq uint16, timeout time.Duration) (icmp.Result, []byte, error) {
	data, err := payload.Build(r.Config.Body)
	if err != nil {
		return icmp.Result{}, nil, err
	}
	data = payload.Pad(data, r.Config.Size)

	pkt, err := r.Session.SendEcho(r.Config.Identifier, seq, data)
	if err != nil {
		if r.Metrics != nil && errors.Is(err, icmp.ErrSend) {
			r.Metrics.RecordProbeError(metrics.KindSend)
		}
		return icmp.Result{}, nil, err
	}
	if r.Metrics != nil {
		r.Metrics.RecordSent(pkt.Len())
	}

	res, err := r.Session.ReceiveReplyContext(ctx, timeout)
	if err != nil {
		return icmp.Result{}, data, err
	}
	if r.Metrics != nil {
		r.Metrics.RecordReply(res.Type.String(), res.BytesReceived, res.RoundTrip, res.TTL)
	}
	r.Logger.Debug("echo reply",
		slog.String(logging.KeyAddress, res.From.String()),
		slog.Int(logging.KeySeq, int(res.Seq)),
		slog.Int(logging.KeyTTL, int(res.TTL)),
		slog.Int(logging.KeyCode, int(res.Code)),
		slog.Duration(logging.KeyRTT, res.RoundTrip))
	return res, data, nil
}

func (r *Runner) printHeader(target string, addr netip.Addr, dataLen int) {
	if r.headerDone {
		return
	}
	r.headerDone = true
	fmt.Fprintln(r.Out, FormatHeader(target, addr, dataLen))
}

func (r *Runner) printResult(res icmp.Result) {
	fmt.Fprintln(r.Out, FormatResult(res))
}

func (r *Runner) recordError(kind string) {
	if r.Metrics != nil {
		r.Metrics.RecordProbeError(kind)
	}
}

// FormatHeader renders the line printed before the first probe result.
func FormatHeader(target string, addr netip.Addr, dataLen int) string {
	return fmt.Sprintf("PING %s (%s) %d(%d) bytes of data.", target, addr, dataLen, dataLen+ipv4ICMPOverhead)
}

// FormatResult renders one reply line.
func FormatResult(res icmp.Result) string {
	ms := float64(res.RoundTrip) / float64(time.Millisecond)
	return fmt.Sprintf("%d bytes from %s: icmp_seq=%d code=%d ttl=%d time=%.3f ms",
		res.BytesReceived, res.From, res.Seq, res.Code, res.TTL, ms)
}

var reasons = map[string]string{
	metrics.KindTimeout:   "timeout",
	metrics.KindMalformed: "malformed reply",
	metrics.KindReceive:   "receive error",
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, icmp.ErrTimeout):
		return metrics.KindTimeout
	case errors.Is(err, icmp.ErrMalformedReply):
		return metrics.KindMalformed
	default:
		return metrics.KindReceive
	}
}
