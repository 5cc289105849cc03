// Package payload builds and decodes the data carried by ICMP echo requests.
//
// A payload starts with the send time split into whole seconds since the
// Unix epoch and the millisecond remainder, each as an 8-byte big-endian
// integer, followed by arbitrary body bytes:
//
//	+----------------+----------------+---------------
//	| seconds (BE64) | millis (BE64)  | body ...
//	+----------------+----------------+---------------
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// TimestampSize is the length of the timestamp prefix.
const TimestampSize = 16

var (
	// ErrClock is returned when the wall clock reads before the Unix epoch.
	ErrClock = errors.New("clock is before the unix epoch")

	// ErrShortPayload is returned when a payload cannot hold a timestamp.
	ErrShortPayload = errors.New("payload shorter than timestamp prefix")

	// ErrInvalidMillis is returned when the millisecond field is out of range.
	ErrInvalidMillis = errors.New("millisecond remainder out of range")
)

// now is replaced in tests.
var now = time.Now

// Timestamp is the decoded send time carried in a payload.
type Timestamp struct {
	Seconds uint64
	Millis  uint64
}

// Time returns the timestamp as a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts.Seconds), int64(ts.Millis)*int64(time.Millisecond))
}

// Build returns the current wall-clock time followed by body.
// The result is always TimestampSize+len(body) bytes long.
func Build(body []byte) ([]byte, error) {
	return BuildAt(now(), body)
}

// BuildAt is Build with an explicit send time.
func BuildAt(t time.Time, body []byte) ([]byte, error) {
	if t.Before(time.Unix(0, 0)) {
		return nil, fmt.Errorf("%w: %s", ErrClock, t.Format(time.RFC3339))
	}

	secs := uint64(t.Unix())
	millis := uint64(t.Nanosecond() / int(time.Millisecond))

	buf := make([]byte, TimestampSize+len(body))
	binary.BigEndian.PutUint64(buf[0:8], secs)
	binary.BigEndian.PutUint64(buf[8:16], millis)
	copy(buf[TimestampSize:], body)
	return buf, nil
}

// Decode splits a payload into its timestamp and body.
// The returned body aliases p.
func Decode(p []byte) (Timestamp, []byte, error) {
	if len(p) < TimestampSize {
		return Timestamp{}, nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(p))
	}

	ts := Timestamp{
		Seconds: binary.BigEndian.Uint64(p[0:8]),
		Millis:  binary.BigEndian.Uint64(p[8:16]),
	}
	if ts.Millis >= 1000 {
		return Timestamp{}, nil, fmt.Errorf("%w: %d", ErrInvalidMillis, ts.Millis)
	}

	return ts, p[TimestampSize:], nil
}

// Pad zero-fills p up to size bytes. Payloads that are already at least
// size bytes long are returned unchanged.
func Pad(p []byte, size int) []byte {
	if len(p) >= size {
		return p
	}
	padded := make([]byte, size)
	copy(padded, p)
	return padded
}
