// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame results.
const (
	ResultDecoded  = "decoded"
	ResultTooShort = "too_short"
	ResultFiltered = "filtered"
)

var (
	// CapturePacketsTotal counts link-layer packets read from the source by
	// what happened to them: matched carries an event capture payload.
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nf2cap_capture_packets_total",
			Help: "Total number of packets read from the source",
		},
		[]string{"outcome"},
	)

	// FramesTotal counts event capture frames by decode result.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nf2cap_frames_total",
			Help: "Total number of event capture frames",
		},
		[]string{"result"},
	)

	// RecordsTotal counts decoded records by type.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nf2cap_records_total",
			Help: "Total number of decoded event records",
		},
		[]string{"type"},
	)

	// TrailingBytesTotal counts bytes left after the last complete record.
	TrailingBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nf2cap_trailing_bytes_total",
			Help: "Total number of undecoded bytes after the last record of a frame",
		},
	)

	// CountMismatchTotal counts frames whose header event count disagrees
	// with the records decoded.
	CountMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nf2cap_count_mismatch_total",
			Help: "Total number of frames whose event count field disagrees with the decoded records",
		},
	)

	// QueueDepthWords is the last reported occupancy of each queue.
	QueueDepthWords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nf2cap_queue_depth_words",
			Help: "Queue occupancy in 64-bit words from the latest frame",
		},
		[]string{"queue"},
	)

	// QueueDepthPackets is the last reported packet count of each queue.
	QueueDepthPackets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nf2cap_queue_depth_packets",
			Help: "Queue occupancy in packets from the latest frame",
		},
		[]string{"queue"},
	)

	// DecodeLatencySeconds measures the decode of one frame.
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nf2cap_decode_latency_seconds",
			Help:    "Latency of decoding one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// ReporterErrorsTotal counts failed reports.
	ReporterErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nf2cap_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
	)
)
