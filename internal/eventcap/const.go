package eventcap

import "fmt"

const (
	// HeaderLen is the size of the fixed frame header.
	HeaderLen = 78

	// NumQueues is the number of queue depth pairs carried by the header.
	NumQueues = 8

	timestampRecordLen = 8
	shortRecordLen     = 4

	seqOffset       = 2
	queueOffset     = 6
	timestampOffset = 70
)

// Bit masks of the wire format.
const (
	VersionMask uint8 = 0x0F
	PadMask     uint8 = 0xF0

	TypeMask      uint32 = 0xC0000000
	QueueIDMask   uint32 = 0x38000000
	PacketLenMask uint32 = 0x07F80000
	TimeLSBMask   uint32 = 0x0007FFFF

	// TimeTopMask clears the two reserved bits of the header timestamp's
	// upper half.
	TimeTopMask uint32 = 0x3FFFFFFF

	typeShift      = 30
	queueIDShift   = 27
	packetLenShift = 19
	padShift       = 4
)

// EventType is the 2-bit tag at the start of every record.
type EventType uint8

const (
	TypeTimestamp EventType = iota
	TypeArrive
	TypeDepart
	TypeDrop
)

var eventTypeNames = [...]string{
	TypeTimestamp: "timestamp",
	TypeArrive:    "arrive",
	TypeDepart:    "depart",
	TypeDrop:      "drop",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Queue indices interleave CPU and NetFPGA port queues.
var queueNames = [NumQueues]string{
	"CPU0", "NF2C0",
	"CPU1", "NF2C1",
	"CPU2", "NF2C2",
	"CPU3", "NF2C3",
}

// QueueName returns the display name of queue id.
func QueueName(id uint8) string {
	if int(id) < len(queueNames) {
		return queueNames[id]
	}
	return fmt.Sprintf("Q%d", id)
}
