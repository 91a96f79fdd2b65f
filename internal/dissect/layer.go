// Package dissect exposes event capture frames to gopacket and to the
// display side of the tool: a decoding layer, a field schema and labels.
package dissect

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/nf2cap/internal/eventcap"
)

// LayerTypeEventCapture identifies EventCapture layers. The number sits in
// gopacket's range for application-specific types.
var LayerTypeEventCapture = gopacket.RegisterLayerType(1975, gopacket.LayerTypeMetadata{
	Name:    "NF2EventCapture",
	Decoder: gopacket.DecodeFunc(decodeEventCapture),
})

// EventCapture is a decoded frame as a gopacket layer. Contents cover the
// header and every complete record; Payload holds the ignored trailing bytes.
type EventCapture struct {
	layers.BaseLayer
	Frame eventcap.Frame
}

var _ gopacket.DecodingLayer = (*EventCapture)(nil)

// LayerType implements gopacket.Layer.
func (e *EventCapture) LayerType() gopacket.LayerType { return LayerTypeEventCapture }

// CanDecode implements gopacket.DecodingLayer.
func (e *EventCapture) CanDecode() gopacket.LayerClass { return LayerTypeEventCapture }

// NextLayerType implements gopacket.DecodingLayer. Frames carry nothing
// decodable after the event stream.
func (e *EventCapture) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

// DecodeFromBytes implements gopacket.DecodingLayer. The layer reuses its
// record slice between calls.
func (e *EventCapture) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	hdr, err := eventcap.DecodeHeader(data)
	if err != nil {
		df.SetTruncated()
		return err
	}

	it := eventcap.NewEventIterator(data[eventcap.HeaderLen:], hdr.Timestamp)
	records := e.Frame.Records[:0]
	for it.Next() {
		records = append(records, it.Record())
	}

	e.Frame = eventcap.Frame{
		Header:   hdr,
		Records:  records,
		Trailing: it.Remaining(),
		Decoded:  len(records),
	}
	end := len(data) - e.Frame.Trailing
	e.BaseLayer = layers.BaseLayer{Contents: data[:end], Payload: data[end:]}
	return nil
}

func decodeEventCapture(data []byte, p gopacket.PacketBuilder) error {
	ec := &EventCapture{}
	if err := ec.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(ec)
	return nil
}
