package metrics

import (
	"time"

	"firestige.xyz/nf2cap/internal/eventcap"
)

// ObserveFrame records a decoded frame: its records, trailing bytes,
// event count agreement and queue depths.
func ObserveFrame(f *eventcap.Frame, elapsed time.Duration) {
	FramesTotal.WithLabelValues(ResultDecoded).Inc()
	DecodeLatencySeconds.Observe(elapsed.Seconds())

	var counts [4]int
	for _, r := range f.Records {
		counts[r.Type()]++
	}
	for t, n := range counts {
		if n > 0 {
			RecordsTotal.WithLabelValues(eventcap.EventType(t).String()).Add(float64(n))
		}
	}

	if f.Trailing > 0 {
		TrailingBytesTotal.Add(float64(f.Trailing))
	}
	if f.CountMismatch() {
		CountMismatchTotal.Inc()
	}
	for i, q := range f.Header.Queues {
		name := eventcap.QueueName(uint8(i))
		QueueDepthWords.WithLabelValues(name).Set(float64(q.Words))
		QueueDepthPackets.WithLabelValues(name).Set(float64(q.Packets))
	}
}
