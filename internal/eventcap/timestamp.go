package eventcap

import (
	"fmt"
	"time"
)

const (
	// TickDuration is the length of one timestamp tick.
	TickDuration = 8 * time.Nanosecond

	// TicksPerSecond is the number of ticks in one second.
	TicksPerSecond = uint64(time.Second / TickDuration)
)

// Timestamp is a 64-bit tick count split into two 32-bit halves as it
// appears on the wire.
type Timestamp struct {
	Top    uint32 `json:"top" yaml:"top"`
	Bottom uint32 `json:"bottom" yaml:"bottom"`
}

// TimestampFromTicks splits ticks into halves.
func TimestampFromTicks(ticks uint64) Timestamp {
	return Timestamp{Top: uint32(ticks >> 32), Bottom: uint32(ticks)}
}

// Ticks returns the raw 64-bit tick count.
func (t Timestamp) Ticks() uint64 {
	return uint64(t.Top)<<32 | uint64(t.Bottom)
}

// Duration converts the tick count to a time.Duration. Values beyond
// roughly 36 years of ticks overflow.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Ticks()) * TickDuration
}

func (t Timestamp) String() string {
	return FormatTimestamp(t)
}

// withLSB keeps the upper half and the high bits of the lower half, taking the
// bits under TimeLSBMask from word.
func (t Timestamp) withLSB(word uint32) Timestamp {
	return Timestamp{
		Top:    t.Top,
		Bottom: (t.Bottom &^ TimeLSBMask) | (word & TimeLSBMask),
	}
}

// FormatTimestamp renders t as seconds.nanoseconds.
func FormatTimestamp(t Timestamp) string {
	ticks := t.Ticks()
	sec := ticks / TicksPerSecond
	nsec := (ticks % TicksPerSecond) * uint64(TickDuration)
	return fmt.Sprintf("%d.%09d", sec, nsec)
}
