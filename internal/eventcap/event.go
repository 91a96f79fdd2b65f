package eventcap

import (
	"encoding/binary"
	"iter"
)

// Record is one decoded entry of the event stream, either a
// TimestampRefresh or a ShortEvent.
type Record interface {
	// Type returns the record tag.
	Type() EventType
	// Time returns the effective timestamp of the record.
	Time() Timestamp
	// Pos returns the offset of the record within the event region.
	Pos() int
	// Size returns the encoded length of the record.
	Size() int

	isRecord()
}

// TimestampRefresh replaces the running timestamp.
type TimestampRefresh struct {
	Timestamp Timestamp
	Offset    int
}

func (TimestampRefresh) Type() EventType   { return TypeTimestamp }
func (r TimestampRefresh) Time() Timestamp { return r.Timestamp }
func (r TimestampRefresh) Pos() int        { return r.Offset }
func (TimestampRefresh) Size() int         { return timestampRecordLen }
func (TimestampRefresh) isRecord()         {}

// ShortEvent is a queue event whose timestamp shares its upper bits with the
// running timestamp.
type ShortEvent struct {
	Kind      EventType
	QueueID   uint8
	PacketLen uint32
	Timestamp Timestamp
	Offset    int
}

func (e ShortEvent) Type() EventType { return e.Kind }
func (e ShortEvent) Time() Timestamp { return e.Timestamp }
func (e ShortEvent) Pos() int        { return e.Offset }
func (ShortEvent) Size() int         { return shortRecordLen }
func (ShortEvent) isRecord()         {}

// EventIterator walks the event region of one frame. It carries the running
// timestamp, so it is single-use and must be driven by one goroutine.
//
//	it := eventcap.NewEventIterator(buf[eventcap.HeaderLen:], hdr.Timestamp)
//	for it.Next() {
//		switch r := it.Record().(type) {
//		case eventcap.TimestampRefresh:
//		case eventcap.ShortEvent:
//		}
//	}
type EventIterator struct {
	buf    []byte
	offset int
	ts     Timestamp
	rec    Record
	done   bool
}

// NewEventIterator returns an iterator over buf, the bytes following the
// header, seeded with the header timestamp.
func NewEventIterator(buf []byte, base Timestamp) *EventIterator {
	return &EventIterator{buf: buf, ts: base}
}

// Next decodes the next record. It returns false once the buffer is
// exhausted: fewer than 4 bytes left, or a timestamp refresh with fewer than
// 8 bytes left. Neither case is an error; the leftover bytes are dropped.
func (it *EventIterator) Next() bool {
	if it.done {
		return false
	}
	if it.offset > len(it.buf)-shortRecordLen {
		return it.exhaust()
	}

	word := binary.BigEndian.Uint32(it.buf[it.offset:])
	tag := EventType((it.buf[it.offset] & 0xC0) >> 6)

	if tag == TypeTimestamp {
		if it.offset > len(it.buf)-timestampRecordLen {
			return it.exhaust()
		}
		it.ts = Timestamp{
			Top:    word,
			Bottom: binary.BigEndian.Uint32(it.buf[it.offset+4:]),
		}
		it.rec = TimestampRefresh{Timestamp: it.ts, Offset: it.offset}
		it.offset += timestampRecordLen
		return true
	}

	it.ts = it.ts.withLSB(word)
	it.rec = ShortEvent{
		Kind:      tag,
		QueueID:   uint8((word & QueueIDMask) >> queueIDShift),
		PacketLen: (word & PacketLenMask) >> packetLenShift,
		Timestamp: it.ts,
		Offset:    it.offset,
	}
	it.offset += shortRecordLen
	return true
}

func (it *EventIterator) exhaust() bool {
	it.done = true
	it.rec = nil
	return false
}

// Record returns the record decoded by the last successful Next.
func (it *EventIterator) Record() Record { return it.rec }

// Offset returns the position of the next undecoded byte.
func (it *EventIterator) Offset() int { return it.offset }

// Running returns the running timestamp.
func (it *EventIterator) Running() Timestamp { return it.ts }

// Remaining returns the number of bytes not consumed by a record.
func (it *EventIterator) Remaining() int { return len(it.buf) - it.offset }

// Records drains the iterator as a sequence. Like the iterator itself, the
// sequence can be ranged over only once.
func (it *EventIterator) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for it.Next() {
			if !yield(it.rec) {
				return
			}
		}
	}
}
