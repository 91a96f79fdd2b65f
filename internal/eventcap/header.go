package eventcap

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/nf2cap/internal/core"
)

// ErrTooShort is returned when a buffer cannot hold the fixed header.
var ErrTooShort = core.ErrPacketTooShort

// QueueDepth is the occupancy of one output queue when the frame was built.
type QueueDepth struct {
	Words   uint32 `json:"words" yaml:"words"`     // size in 64-bit words
	Packets uint32 `json:"packets" yaml:"packets"` // size in packets
}

// Header is the fixed part of a frame.
type Header struct {
	Version   uint8                 `json:"version" yaml:"version"`
	Reserved  uint8                 `json:"reserved" yaml:"reserved"`
	NumEvents uint8                 `json:"num_events" yaml:"num_events"`
	Seq       uint32                `json:"seq" yaml:"seq"`
	Queues    [NumQueues]QueueDepth `json:"queues" yaml:"queues"`
	Timestamp Timestamp             `json:"timestamp" yaml:"timestamp"`
}

// DecodeHeader parses the fixed header from the start of buf.
//
// Header contents are not validated; unknown versions are returned as-is. The
// two reserved bits of the timestamp's upper half are cleared, they are never a
// record tag.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTooShort, HeaderLen, len(buf))
	}

	h := Header{
		Version:   buf[0] & VersionMask,
		Reserved:  (buf[0] & PadMask) >> padShift,
		NumEvents: buf[1],
		Seq:       binary.BigEndian.Uint32(buf[seqOffset:]),
	}
	for i := range h.Queues {
		off := queueOffset + 8*i
		h.Queues[i] = QueueDepth{
			Words:   binary.BigEndian.Uint32(buf[off:]),
			Packets: binary.BigEndian.Uint32(buf[off+4:]),
		}
	}
	h.Timestamp = Timestamp{
		Top:    binary.BigEndian.Uint32(buf[timestampOffset:]) & TimeTopMask,
		Bottom: binary.BigEndian.Uint32(buf[timestampOffset+4:]),
	}
	return h, nil
}
