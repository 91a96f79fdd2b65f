package dissect

import (
	"fmt"
	"strings"

	"firestige.xyz/nf2cap/internal/eventcap"
)

// FieldKind is the semantic type of a schema field.
type FieldKind int

const (
	KindNone FieldKind = iota
	KindUint8
	KindUint32
	KindString
)

func (k FieldKind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint32:
		return "uint32"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

// Field describes one searchable field of a decoded frame.
type Field struct {
	Abbrev      string
	Name        string
	Kind        FieldKind
	Mask        uint32
	Description string
}

// Fields lists every field a frame exposes, in wire order.
var Fields = buildFields()

func buildFields() []Field {
	fields := []Field{
		{"nf2.data", "Data", KindNone, 0, "NF2 Event Capture PDU"},
		{"nf2.header", "Header", KindNone, 0, "NF2 Event Capture Header"},
		{"nf2.pad", "Padding", KindUint8, uint32(eventcap.PadMask), "Padding"},
		{"nf2.ver", "Version", KindUint8, uint32(eventcap.VersionMask), "Version"},
		{"nf2.num_events", "# of Events", KindUint8, 0, "# of Events"},
		{"nf2.seq", "Seq #", KindUint32, 0, "Sequence #"},
	}
	for id := range uint8(eventcap.NumQueues) {
		name := eventcap.QueueName(id)
		abbrev := "nf2." + strings.ToLower(name)
		fields = append(fields,
			Field{abbrev + "w", name + " Words", KindUint32, 0, name + " Size in 64-bit Words"},
			Field{abbrev + "p", name + " Packets", KindUint32, 0, name + " Size in Packets"},
		)
	}
	return append(fields,
		Field{"nf2.ts", "Timestamp", KindString, 0, "Timestamp in units of 8ns"},
		Field{"nf2.ts_top", "Timestamp Upper", KindUint32, eventcap.TimeTopMask, "Upper Timestamp in units of 8ns"},
		Field{"nf2.ts_btm", "Timestamp Lower", KindUint32, 0, "Lower Timestamp in units of 8ns"},
		Field{"nf2.event", "Event", KindNone, 0, "Event"},
		Field{"nf2.type", "Type", KindUint32, eventcap.TypeMask, "Event Type"},
		Field{"nf2.ev", "Event", KindString, 0, "Short Event"},
		Field{"nf2.q", "Queue", KindUint32, eventcap.QueueIDMask, "Queue"},
		Field{"nf2.len", "Packet Length", KindUint32, eventcap.PacketLenMask, "Packet Length"},
		Field{"nf2.ts_lsb", "Timestamp (LSB)", KindUint32, eventcap.TimeLSBMask, "Timestamp (LSB) in units of 8ns"},
	)
}

// Lookup returns the field registered under abbrev.
func Lookup(abbrev string) (Field, bool) {
	for _, f := range Fields {
		if f.Abbrev == abbrev {
			return f, true
		}
	}
	return Field{}, false
}

// MaskString renders a field mask for display, empty when the field is not a
// bit-field.
func (f Field) MaskString() string {
	if f.Mask == 0 {
		return ""
	}
	if f.Kind == KindUint8 {
		return fmt.Sprintf("0x%02X", f.Mask)
	}
	return fmt.Sprintf("0x%08X", f.Mask)
}
