// Package metrics provides Prometheus metrics for muti-ping probes.
package metrics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	namespace = "muti_ping"
)

// Error kinds used as the "kind" label of ProbeErrors.
const (
	KindTimeout   = "timeout"
	KindReceive   = "receive"
	KindMalformed = "malformed"
	KindSend      = "send"
)

// Metrics contains all Prometheus metrics for a ping run.
type Metrics struct {
	ProbesSent      prometheus.Counter
	BytesSent       prometheus.Counter
	RepliesReceived *prometheus.CounterVec
	BytesReceived   prometheus.Counter
	ProbeErrors     *prometheus.CounterVec

	RoundTrip     prometheus.Histogram
	LastRoundTrip prometheus.Gauge
	LastTTL       prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom
// registry. WriteTextfile is only available when reg is also a Gatherer.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ProbesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_sent_total",
			Help:      "Total number of echo requests sent",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total ICMP bytes sent",
		}),
		RepliesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_received_total",
			Help:      "Total ICMP messages accepted as replies by ICMP type",
		}, []string{"type"}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read for accepted replies",
		}),
		ProbeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_errors_total",
			Help:      "Total probes without a reply by error kind",
		}, []string{"kind"}),

		RoundTrip: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_trip_seconds",
			Help:      "Echo round-trip time",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		LastRoundTrip: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_round_trip_seconds",
			Help:      "Round-trip time of the most recent reply",
		}),
		LastTTL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_ttl",
			Help:      "IPv4 TTL of the most recent reply",
		}),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RecordSent records an echo request of the given wire size.
func (m *Metrics) RecordSent(bytes int) {
	m.ProbesSent.Inc()
	m.BytesSent.Add(float64(bytes))
}

// RecordReply records an accepted reply.
func (m *Metrics) RecordReply(icmpType string, bytes int, rtt time.Duration, ttl uint8) {
	m.RepliesReceived.WithLabelValues(icmpType).Inc()
	m.BytesReceived.Add(float64(bytes))
	m.RoundTrip.Observe(rtt.Seconds())
	m.LastRoundTrip.Set(rtt.Seconds())
	m.LastTTL.Set(float64(ttl))
}

// RecordProbeError records a probe that ended without a reply.
func (m *Metrics) RecordProbeError(kind string) {
	m.ProbeErrors.WithLabelValues(kind).Inc()
}

// WriteTextfile writes every gathered metric family to path in the
// Prometheus text format, replacing the file atomically so a node_exporter
// textfile collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return fmt.Errorf("metrics registry cannot be gathered")
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			tmp.Close()
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
