package payload

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestBuild_Length(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"test", []byte("test")},
		{"sample body", []byte("0123456789!@#$%^&*()")},
		{"odd length", []byte("abcde")},
		{"large", make([]byte, 1400)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.body)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(p) != TimestampSize+len(tt.body) {
				t.Errorf("len(Build()) = %d, want %d", len(p), TimestampSize+len(tt.body))
			}
			if !bytes.Equal(p[TimestampSize:], tt.body) {
				t.Errorf("body = %q, want %q", p[TimestampSize:], tt.body)
			}
		})
	}
}

func TestBuildAt_WireLayout(t *testing.T) {
	ts := time.Unix(0x01020304, 789*int64(time.Millisecond)+123456)

	p, err := BuildAt(ts, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("BuildAt() error = %v", err)
	}

	want := []byte{
		0, 0, 0, 0, 0x01, 0x02, 0x03, 0x04, // seconds
		0, 0, 0, 0, 0, 0, 0x03, 0x15, // 789 millis
		0xAA, 0xBB,
	}
	if !bytes.Equal(p, want) {
		t.Errorf("BuildAt() = % x, want % x", p, want)
	}
}

func TestBuildAt_BeyondNanosecondRange(t *testing.T) {
	// UnixNano is undefined past 2262; the wire fields must not depend on it.
	ts := time.Date(2300, time.January, 2, 3, 4, 5, 678*int(time.Millisecond), time.UTC)

	p, err := BuildAt(ts, nil)
	if err != nil {
		t.Fatalf("BuildAt() error = %v", err)
	}
	got, _, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Seconds != uint64(ts.Unix()) {
		t.Errorf("Seconds = %d, want %d", got.Seconds, ts.Unix())
	}
	if got.Millis != 678 {
		t.Errorf("Millis = %d, want 678", got.Millis)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		secs   int64
		millis int64
		body   []byte
	}{
		{0, 0, nil},
		{1700000000, 0, []byte("test")},
		{1700000000, 999, []byte("0123456789!@#$%^&*()")},
		{4102444800, 500, bytes.Repeat([]byte{0xff}, 40)},
	}

	for _, tt := range tests {
		at := time.Unix(tt.secs, tt.millis*int64(time.Millisecond))
		p, err := BuildAt(at, tt.body)
		if err != nil {
			t.Fatalf("BuildAt(%v) error = %v", at, err)
		}

		ts, body, err := Decode(p)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if ts.Seconds != uint64(tt.secs) {
			t.Errorf("Seconds = %d, want %d", ts.Seconds, tt.secs)
		}
		if ts.Millis != uint64(tt.millis) {
			t.Errorf("Millis = %d, want %d", ts.Millis, tt.millis)
		}
		if !bytes.Equal(body, tt.body) {
			t.Errorf("body = %q, want %q", body, tt.body)
		}
		if !ts.Time().Equal(at) {
			t.Errorf("Time() = %v, want %v", ts.Time(), at)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, _, err := Decode(make([]byte, 15)); !errors.Is(err, ErrShortPayload) {
		t.Errorf("Decode(15 bytes) error = %v, want ErrShortPayload", err)
	}

	p := make([]byte, TimestampSize)
	p[14], p[15] = 0x03, 0xE8 // 1000 millis
	if _, _, err := Decode(p); !errors.Is(err, ErrInvalidMillis) {
		t.Errorf("Decode(millis=1000) error = %v, want ErrInvalidMillis", err)
	}
}

func TestBuild_ClockBeforeEpoch(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Unix(-10, 0) }

	_, err := Build([]byte("x"))
	if !errors.Is(err, ErrClock) {
		t.Errorf("Build() error = %v, want ErrClock", err)
	}
}

func TestBuild_UsesCurrentTime(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	p, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	after := time.Now()

	ts, _, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got := ts.Time()
	if got.Before(before) || got.After(after) {
		t.Errorf("timestamp %v not within [%v, %v]", got, before, after)
	}
}

func TestPad(t *testing.T) {
	p := []byte{1, 2, 3}

	padded := Pad(p, 8)
	if !bytes.Equal(padded, []byte{1, 2, 3, 0, 0, 0, 0, 0}) {
		t.Errorf("Pad(3, 8) = %v", padded)
	}

	same := Pad(p, 3)
	if &same[0] != &p[0] {
		t.Error("Pad() should return the input when already at size")
	}

	longer := Pad(p, 2)
	if len(longer) != 3 {
		t.Errorf("Pad() truncated payload to %d bytes", len(longer))
	}
}
