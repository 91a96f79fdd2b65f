package eventcap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
)

// wireHeader mirrors the on-wire header layout. struc packs big-endian by
// default.
type wireHeader struct {
	VersionPad uint8
	NumEvents  uint8
	Seq        uint32
	Queues     [2 * NumQueues]uint32
	TimeTop    uint32
	TimeBottom uint32
}

// Builder encodes frames. It is used to synthesize captures and test input.
//
// Errors are sticky: the first invalid append is reported by Bytes and later
// appends are ignored.
type Builder struct {
	header    Header
	events    bytes.Buffer
	count     int
	autoCount bool
	err       error
}

// NewBuilder starts a frame with header h.
func NewBuilder(h Header) *Builder {
	return &Builder{header: h}
}

// WithEventCount makes Bytes store the number of appended records in the
// header instead of h.NumEvents.
func (b *Builder) WithEventCount() *Builder {
	b.autoCount = true
	return b
}

// AppendTimestamp appends a timestamp refresh record. The reserved tag bits
// of ts.Top are cleared.
func (b *Builder) AppendTimestamp(ts Timestamp) *Builder {
	if b.err != nil {
		return b
	}
	var rec [timestampRecordLen]byte
	binary.BigEndian.PutUint32(rec[0:], ts.Top&TimeTopMask)
	binary.BigEndian.PutUint32(rec[4:], ts.Bottom)
	b.events.Write(rec[:])
	b.count++
	return b
}

// AppendEvent appends a short event. lsb carries the low timestamp bits.
func (b *Builder) AppendEvent(kind EventType, queueID uint8, packetLen uint32, lsb uint32) *Builder {
	if b.err != nil {
		return b
	}
	switch {
	case kind == TypeTimestamp || kind > TypeDrop:
		b.err = fmt.Errorf("eventcap: invalid short event type %d", kind)
	case uint32(queueID) > QueueIDMask>>queueIDShift:
		b.err = fmt.Errorf("eventcap: queue id %d out of range", queueID)
	case packetLen > PacketLenMask>>packetLenShift:
		b.err = fmt.Errorf("eventcap: packet length %d out of range", packetLen)
	case lsb > TimeLSBMask:
		b.err = fmt.Errorf("eventcap: timestamp bits %#x out of range", lsb)
	}
	if b.err != nil {
		return b
	}

	word := uint32(kind)<<typeShift |
		uint32(queueID)<<queueIDShift |
		packetLen<<packetLenShift |
		lsb
	var rec [shortRecordLen]byte
	binary.BigEndian.PutUint32(rec[:], word)
	b.events.Write(rec[:])
	b.count++
	return b
}

// AppendRaw appends p to the event region verbatim.
func (b *Builder) AppendRaw(p []byte) *Builder {
	if b.err == nil {
		b.events.Write(p)
	}
	return b
}

// Count returns the number of records appended so far.
func (b *Builder) Count() int { return b.count }

// Bytes encodes the frame.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	h := b.header
	if b.autoCount {
		if b.count > 0xFF {
			return nil, fmt.Errorf("eventcap: %d records do not fit the event count", b.count)
		}
		h.NumEvents = uint8(b.count)
	}

	wh := wireHeader{
		VersionPad: h.Reserved<<padShift&PadMask | h.Version&VersionMask,
		NumEvents:  h.NumEvents,
		Seq:        h.Seq,
		TimeTop:    h.Timestamp.Top & TimeTopMask,
		TimeBottom: h.Timestamp.Bottom,
	}
	for i, q := range h.Queues {
		wh.Queues[2*i] = q.Words
		wh.Queues[2*i+1] = q.Packets
	}

	var out bytes.Buffer
	out.Grow(HeaderLen + b.events.Len())
	if err := struc.Pack(&out, &wh); err != nil {
		return nil, fmt.Errorf("eventcap: pack header: %w", err)
	}
	out.Write(b.events.Bytes())
	return out.Bytes(), nil
}
