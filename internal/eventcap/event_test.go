package eventcap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func be32(vals ...uint32) []byte {
	buf := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		buf = binary.BigEndian.AppendUint32(buf, v)
	}
	return buf
}

func collect(it *EventIterator) []Record {
	var recs []Record
	for it.Next() {
		recs = append(recs, it.Record())
	}
	return recs
}

func TestIteratorTimestampRefresh(t *testing.T) {
	it := NewEventIterator(be32(0x00000001, 0x00000008), Timestamp{Top: 9, Bottom: 9})

	recs := collect(it)
	require.Len(t, recs, 1)
	assert.Equal(t, TimestampRefresh{Timestamp: Timestamp{Top: 1, Bottom: 8}}, recs[0])
	assert.Equal(t, Timestamp{Top: 1, Bottom: 8}, it.Running())
	assert.Equal(t, 0, it.Remaining())
}

func TestIteratorShortEventMergesLowBits(t *testing.T) {
	base := Timestamp{Top: 7, Bottom: 0xABCDEF12}
	word := uint32(0x5A012345) // arrive, queue 3, len 64, lsb 0x12345

	it := NewEventIterator(be32(word), base)
	require.True(t, it.Next())

	ev, ok := it.Record().(ShortEvent)
	require.True(t, ok, "got %T", it.Record())
	assert.Equal(t, TypeArrive, ev.Kind)
	assert.Equal(t, uint8(3), ev.QueueID)
	assert.Equal(t, uint32(64), ev.PacketLen)
	assert.Equal(t, uint32(7), ev.Timestamp.Top)
	assert.Equal(t, uint32(0xABC92345), ev.Timestamp.Bottom)
	assert.Equal(t, (base.Bottom&^TimeLSBMask)|(word&TimeLSBMask), ev.Timestamp.Bottom)
	assert.False(t, it.Next())
}

func TestIteratorShortEventFieldExtraction(t *testing.T) {
	tests := []struct {
		name  string
		word  uint32
		kind  EventType
		queue uint8
		plen  uint32
		lsb   uint32
	}{
		{"arrive", 0x5A012345, TypeArrive, 3, 64, 0x12345},
		{"depart max fields", 0xAFFFFFFF, TypeDepart, 5, 255, 0x7FFFF},
		{"drop zero fields", 0xC0000000, TypeDrop, 0, 0, 0},
		{"queue only", 0x78000000, TypeArrive, 7, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewEventIterator(be32(tt.word), Timestamp{})
			require.True(t, it.Next())
			ev := it.Record().(ShortEvent)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.queue, ev.QueueID)
			assert.Equal(t, tt.plen, ev.PacketLen)
			assert.Equal(t, tt.lsb, ev.Timestamp.Bottom)
		})
	}
}

func TestIteratorShortEventsChain(t *testing.T) {
	base := Timestamp{Top: 2, Bottom: 0xFFF00000}
	buf := be32(
		uint32(TypeArrive)<<30|0x00011,
		uint32(TypeDepart)<<30|0x00022,
	)

	recs := collect(NewEventIterator(buf, base))
	require.Len(t, recs, 2)
	assert.Equal(t, Timestamp{Top: 2, Bottom: 0xFFF00011}, recs[0].Time())
	assert.Equal(t, Timestamp{Top: 2, Bottom: 0xFFF00022}, recs[1].Time())
	assert.Equal(t, 0, recs[0].Pos())
	assert.Equal(t, 4, recs[1].Pos())
}

func TestIteratorRefreshResetsRunningTimestamp(t *testing.T) {
	buf := be32(
		0x00000003, 0x80000000, // refresh
		uint32(TypeDrop)<<30|2<<27|0x00001, // short
	)

	recs := collect(NewEventIterator(buf, Timestamp{Top: 100, Bottom: 100}))
	require.Len(t, recs, 2)
	assert.Equal(t, TypeTimestamp, recs[0].Type())
	assert.Equal(t, 8, recs[0].Size())
	assert.Equal(t, Timestamp{Top: 3, Bottom: 0x80000001}, recs[1].Time())
	assert.Equal(t, 8, recs[1].Pos())
}

func TestIteratorExactMultipleOfFour(t *testing.T) {
	for n := 0; n <= 5; n++ {
		var words []uint32
		for i := 0; i < n; i++ {
			words = append(words, uint32(TypeArrive)<<30|uint32(i))
		}
		it := NewEventIterator(be32(words...), Timestamp{})
		recs := collect(it)
		assert.Len(t, recs, n)
		assert.Equal(t, 0, it.Remaining())
		for _, r := range recs {
			assert.IsType(t, ShortEvent{}, r)
		}
	}
}

func TestIteratorIgnoresDanglingBytes(t *testing.T) {
	const n = 3
	words := make([]uint32, n)
	for i := range words {
		words[i] = uint32(TypeDepart)<<30 | uint32(i)
	}

	for k := 1; k <= 3; k++ {
		buf := append(be32(words...), make([]byte, k)...)
		for i := n * 4; i < len(buf); i++ {
			buf[i] = 0xFF
		}
		it := NewEventIterator(buf, Timestamp{})
		recs := collect(it)
		assert.Len(t, recs, n, "k=%d", k)
		assert.Equal(t, k, it.Remaining(), "k=%d", k)
	}
}

func TestIteratorDropsIncompleteRefresh(t *testing.T) {
	for extra := 0; extra < 4; extra++ {
		buf := append(be32(0x00000001), make([]byte, extra)...)
		it := NewEventIterator(buf, Timestamp{})
		assert.Empty(t, collect(it), "extra=%d", extra)
		assert.Equal(t, 4+extra, it.Remaining())
	}

	// A complete short event before the incomplete refresh is still emitted.
	buf := be32(uint32(TypeArrive)<<30, 0x00000001)
	recs := collect(NewEventIterator(append(buf, 0, 0), Timestamp{}))
	require.Len(t, recs, 1)
	assert.Equal(t, TypeArrive, recs[0].Type())
}

func TestIteratorEmptyBuffer(t *testing.T) {
	for _, buf := range [][]byte{nil, {}, {0x40}, {0x40, 0, 0}} {
		it := NewEventIterator(buf, Timestamp{})
		assert.False(t, it.Next())
		assert.Nil(t, it.Record())
	}
}

func TestIteratorIsNotRestartable(t *testing.T) {
	it := NewEventIterator(be32(uint32(TypeArrive)<<30, uint32(TypeArrive)<<30), Timestamp{})
	assert.Len(t, collect(it), 2)
	assert.False(t, it.Next())
	assert.False(t, it.Next())

	n := 0
	for range it.Records() {
		n++
	}
	assert.Zero(t, n)
}

func TestIteratorRecordsStopEarly(t *testing.T) {
	buf := be32(uint32(TypeArrive)<<30|1, uint32(TypeArrive)<<30|2, uint32(TypeArrive)<<30|3)
	it := NewEventIterator(buf, Timestamp{})

	for r := range it.Records() {
		assert.Equal(t, uint32(1), r.Time().Bottom)
		break
	}
	assert.Equal(t, 4, it.Offset())

	require.True(t, it.Next())
	assert.Equal(t, uint32(2), it.Record().Time().Bottom)
}
