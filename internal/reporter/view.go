package reporter

import (
	"net/netip"
	"strconv"
	"time"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/eventcap"
)

// PayloadTypeNF2 marks OutputPackets whose Payload is an *eventcap.Frame.
const PayloadTypeNF2 = "nf2"

// PacketView is the serialized form of an OutputPacket.
type PacketView struct {
	AgentID   string            `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Src       string            `json:"src,omitempty" yaml:"src,omitempty"`
	Dst       string            `json:"dst,omitempty" yaml:"dst,omitempty"`
	Protocol  string            `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Frame     *FrameView        `json:"frame,omitempty" yaml:"frame,omitempty"`
}

// FrameView is the serialized form of a decoded frame.
type FrameView struct {
	Version       uint8        `json:"version" yaml:"version"`
	NumEvents     uint8        `json:"num_events" yaml:"num_events"`
	Seq           uint32       `json:"seq" yaml:"seq"`
	Time          string       `json:"time" yaml:"time"`
	Ticks         uint64       `json:"ticks" yaml:"ticks"`
	Queues        []QueueView  `json:"queues" yaml:"queues"`
	Records       []RecordView `json:"records" yaml:"records"`
	Trailing      int          `json:"trailing,omitempty" yaml:"trailing,omitempty"`
	CountMismatch bool         `json:"count_mismatch,omitempty" yaml:"count_mismatch,omitempty"`
}

type QueueView struct {
	Name    string `json:"name" yaml:"name"`
	Words   uint32 `json:"words" yaml:"words"`
	Packets uint32 `json:"packets" yaml:"packets"`
}

// RecordView is one record. Queue fields are empty for timestamp refreshes.
type RecordView struct {
	Type      string `json:"type" yaml:"type"`
	Queue     string `json:"queue,omitempty" yaml:"queue,omitempty"`
	PacketLen uint32 `json:"len,omitempty" yaml:"len,omitempty"`
	Time      string `json:"time" yaml:"time"`
	Ticks     uint64 `json:"ticks" yaml:"ticks"`
}

// NewFrameView converts f.
func NewFrameView(f *eventcap.Frame) *FrameView {
	h := f.Header
	v := &FrameView{
		Version:       h.Version,
		NumEvents:     h.NumEvents,
		Seq:           h.Seq,
		Time:          eventcap.FormatTimestamp(h.Timestamp),
		Ticks:         h.Timestamp.Ticks(),
		Queues:        make([]QueueView, len(h.Queues)),
		Records:       make([]RecordView, 0, len(f.Records)),
		Trailing:      f.Trailing,
		CountMismatch: f.CountMismatch(),
	}
	for i, q := range h.Queues {
		v.Queues[i] = QueueView{Name: eventcap.QueueName(uint8(i)), Words: q.Words, Packets: q.Packets}
	}
	for _, r := range f.Records {
		rv := RecordView{
			Type:  r.Type().String(),
			Time:  eventcap.FormatTimestamp(r.Time()),
			Ticks: r.Time().Ticks(),
		}
		if ev, ok := r.(eventcap.ShortEvent); ok {
			rv.Queue = eventcap.QueueName(ev.QueueID)
			rv.PacketLen = ev.PacketLen
		}
		v.Records = append(v.Records, rv)
	}
	return v
}

// NewPacketView converts pkt. Payloads other than NF2 frames are omitted.
func NewPacketView(pkt *core.OutputPacket) PacketView {
	v := PacketView{
		AgentID:   pkt.AgentID,
		Timestamp: pkt.Timestamp,
		Src:       endpoint(pkt.SrcIP, pkt.SrcPort),
		Dst:       endpoint(pkt.DstIP, pkt.DstPort),
		Protocol:  protocolName(pkt.Protocol),
		Labels:    pkt.Labels,
	}
	if f, ok := pkt.Payload.(*eventcap.Frame); ok && f != nil {
		v.Frame = NewFrameView(f)
	}
	return v
}

func endpoint(ip netip.Addr, port uint16) string {
	if !ip.IsValid() {
		return ""
	}
	return netip.AddrPortFrom(ip, port).String()
}

func protocolName(p uint8) string {
	switch p {
	case 0:
		return ""
	case core.ProtocolTCP:
		return "tcp"
	case core.ProtocolUDP:
		return "udp"
	default:
		return strconv.Itoa(int(p))
	}
}
