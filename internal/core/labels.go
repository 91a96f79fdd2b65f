// Package core defines core types.
package core

// Labels represents key-value metadata attached to a decoded frame.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelNF2Version   = "nf2.version"
	LabelNF2NumEvents = "nf2.num_events" // Event count announced by the header
	LabelNF2Seq       = "nf2.seq"
	LabelNF2Time      = "nf2.time"    // Header timestamp, seconds.nanoseconds
	LabelNF2Ticks     = "nf2.ticks"   // Header timestamp in 8ns ticks (decimal)
	LabelNF2Records   = "nf2.records" // Records decoded from the event stream
	LabelNF2Info      = "nf2.info"    // One-line frame summary
	LabelNF2Mismatch  = "nf2.count_mismatch"
)
