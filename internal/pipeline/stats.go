package pipeline

import "sync/atomic"

// counters are updated by the read loop and the emit callbacks and read
// concurrently through Stats.
type counters struct {
	Packets      atomic.Uint64
	Undecodable  atomic.Uint64
	Unmatched    atomic.Uint64
	Frames       atomic.Uint64
	TooShort     atomic.Uint64
	Skipped      atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Packets      uint64 // Link-layer packets read from the source
	Undecodable  uint64 // Packets without a usable UDP or TCP layer
	Unmatched    uint64 // Packets on other ports, or without payload
	Frames       uint64 // Payloads decoded as frames
	TooShort     uint64 // Payloads shorter than a frame header
	Skipped      uint64 // Frames dropped by the filter
	Reported     uint64
	ReportErrors uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Packets:      c.Packets.Load(),
		Undecodable:  c.Undecodable.Load(),
		Unmatched:    c.Unmatched.Load(),
		Frames:       c.Frames.Load(),
		TooShort:     c.TooShort.Load(),
		Skipped:      c.Skipped.Load(),
		Reported:     c.Reported.Load(),
		ReportErrors: c.ReportErrors.Load(),
	}
}
