package stats

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporterConfig mirrors the teacher's MetricsConfig shape
// (Namespace/Subsystem/Enabled), minus the health-check fields this
// engine has no use for.
type PrometheusExporterConfig struct {
	Enabled   bool
	Namespace string
	Subsystem string
}

func DefaultPrometheusExporterConfig() PrometheusExporterConfig {
	return PrometheusExporterConfig{Enabled: true, Namespace: "rtcengine", Subsystem: "pc"}
}

// PrometheusExporter republishes an Accumulator's snapshots as
// Prometheus gauges. It is a pull-model prometheus.Collector rather than
// a push-on-every-packet counter set: Collect calls Snapshot(now, None)
// once per scrape using a caller-supplied now, keeping the Accumulator
// itself free of clock reads.
type PrometheusExporter struct {
	acc *Accumulator
	now func() time.Time

	packetsSent     *prometheus.Desc
	bytesSent       *prometheus.Desc
	packetsReceived *prometheus.Desc
	bytesReceived   *prometheus.Desc
	packetsLost     *prometheus.Desc
	jitter          *prometheus.Desc
	nackCount       *prometheus.Desc
	packetsDiscarded *prometheus.Desc
}

// NewPrometheusExporter wires acc into a Collector; now supplies the
// instant used for each Collect call (the host, not this package,
// decides what "now" means — consistent with every other timing entry
// point in the engine).
func NewPrometheusExporter(acc *Accumulator, now func() time.Time, cfg PrometheusExporterConfig) *PrometheusExporter {
	ns, sub := cfg.Namespace, cfg.Subsystem
	labels := []string{"ssrc", "mid"}
	return &PrometheusExporter{
		acc: acc,
		now: now,
		packetsSent:     prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "outbound_packets_sent"), "Total outbound RTP packets sent", labels, nil),
		bytesSent:       prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "outbound_bytes_sent"), "Total outbound RTP bytes sent", labels, nil),
		packetsReceived: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_packets_received"), "Total inbound RTP packets received", labels, nil),
		bytesReceived:   prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_bytes_received"), "Total inbound RTP bytes received", labels, nil),
		packetsLost:     prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_packets_lost"), "Estimated inbound RTP packets lost", labels, nil),
		jitter:          prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_jitter_seconds"), "RFC 3550 jitter estimate", labels, nil),
		nackCount:       prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_nack_count"), "NACK requests sent for this stream", labels, nil),
		packetsDiscarded: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "inbound_packets_discarded"), "Packets dropped on protocol-parse or SRTP failure", labels, nil),
	}
}

func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.packetsSent
	ch <- e.bytesSent
	ch <- e.packetsReceived
	ch <- e.bytesReceived
	ch <- e.packetsLost
	ch <- e.jitter
	ch <- e.nackCount
	ch <- e.packetsDiscarded
}

func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	report := e.acc.Snapshot(e.now(), Selector{Kind: SelectorNone})

	for _, o := range report.Outbound {
		labels := []string{fmt.Sprintf("%d", o.SSRC), string(o.Mid)}
		ch <- prometheus.MustNewConstMetric(e.packetsSent, prometheus.CounterValue, float64(o.PacketsSent), labels...)
		ch <- prometheus.MustNewConstMetric(e.bytesSent, prometheus.CounterValue, float64(o.BytesSent), labels...)
	}
	for _, in := range report.Inbound {
		labels := []string{fmt.Sprintf("%d", in.SSRC), string(in.Mid)}
		ch <- prometheus.MustNewConstMetric(e.packetsReceived, prometheus.CounterValue, float64(in.PacketsReceived), labels...)
		ch <- prometheus.MustNewConstMetric(e.bytesReceived, prometheus.CounterValue, float64(in.BytesReceived), labels...)
		ch <- prometheus.MustNewConstMetric(e.packetsLost, prometheus.GaugeValue, float64(in.PacketsLost), labels...)
		ch <- prometheus.MustNewConstMetric(e.jitter, prometheus.GaugeValue, in.Jitter, labels...)
		ch <- prometheus.MustNewConstMetric(e.nackCount, prometheus.CounterValue, float64(in.NackCount), labels...)
		ch <- prometheus.MustNewConstMetric(e.packetsDiscarded, prometheus.CounterValue, float64(in.PacketsDiscarded), labels...)
	}
}
