package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.ProbesSent == nil || m.RoundTrip == nil || m.LastTTL == nil {
		t.Error("metric fields should be initialized")
	}
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	// Each instance registers on its own registry, so two can coexist.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSent(64)
	if got := testutil.ToFloat64(b.ProbesSent); got != 0 {
		t.Errorf("second instance ProbesSent = %v, want 0", got)
	}
}

func TestRecordSent(t *testing.T) {
	m := NewMetrics()

	m.RecordSent(64)
	m.RecordSent(64)
	m.RecordSent(44)

	if got := testutil.ToFloat64(m.ProbesSent); got != 3 {
		t.Errorf("ProbesSent = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.BytesSent); got != 172 {
		t.Errorf("BytesSent = %v, want 172", got)
	}
}

func TestRecordReply(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordReply("echo reply", 84, 2*time.Millisecond, 64)
	m.RecordReply("echo reply", 84, 4*time.Millisecond, 63)
	m.RecordReply("destination unreachable", 56, time.Millisecond, 250)

	if got := testutil.ToFloat64(m.RepliesReceived.WithLabelValues("echo reply")); got != 2 {
		t.Errorf("RepliesReceived{echo reply} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RepliesReceived.WithLabelValues("destination unreachable")); got != 1 {
		t.Errorf("RepliesReceived{destination unreachable} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived); got != 224 {
		t.Errorf("BytesReceived = %v, want 224", got)
	}
	if got := testutil.ToFloat64(m.LastTTL); got != 250 {
		t.Errorf("LastTTL = %v, want 250", got)
	}
	if got := testutil.ToFloat64(m.LastRoundTrip); got != 0.001 {
		t.Errorf("LastRoundTrip = %v, want 0.001", got)
	}
	if got := testutil.CollectAndCount(m.RoundTrip); got != 1 {
		t.Errorf("RoundTrip series = %d, want 1", got)
	}
}

func TestRecordProbeError(t *testing.T) {
	m := NewMetrics()

	m.RecordProbeError(KindTimeout)
	m.RecordProbeError(KindTimeout)
	m.RecordProbeError(KindMalformed)

	if got := testutil.ToFloat64(m.ProbeErrors.WithLabelValues(KindTimeout)); got != 2 {
		t.Errorf("ProbeErrors{timeout} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProbeErrors.WithLabelValues(KindMalformed)); got != 1 {
		t.Errorf("ProbeErrors{malformed} = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordSent(64)
	m.RecordReply("echo reply", 84, 3*time.Millisecond, 64)

	path := filepath.Join(t.TempDir(), "ping.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"# TYPE muti_ping_probes_sent_total counter",
		"muti_ping_probes_sent_total 1",
		`muti_ping_replies_received_total{type="echo reply"} 1`,
		"muti_ping_last_ttl 64",
		"muti_ping_round_trip_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the textfile", len(entries))
	}
}

func TestWriteTextfile_MissingDirectory(t *testing.T) {
	m := NewMetrics()
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "ping.prom")); err == nil {
		t.Error("WriteTextfile() should fail when the directory does not exist")
	}
}

func TestWriteTextfile_NotGatherable(t *testing.T) {
	m := NewMetricsWithRegistry(registererOnly{prometheus.NewRegistry()})
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "ping.prom")); err == nil {
		t.Error("WriteTextfile() should fail without a gatherer")
	}
}

type registererOnly struct {
	reg *prometheus.Registry
}

func (r registererOnly) Register(c prometheus.Collector) error  { return r.reg.Register(c) }
func (r registererOnly) MustRegister(cs ...prometheus.Collector) { r.reg.MustRegister(cs...) }
func (r registererOnly) Unregister(c prometheus.Collector) bool  { return r.reg.Unregister(c) }
