// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// DecodedPacket is the result of L2-L4 decoding of one captured packet.
type DecodedPacket struct {
	Timestamp  time.Time
	IP         IPHeader
	Transport  TransportHeader
	Payload    []byte // Application layer payload, zero-copy slice
	CaptureLen uint32
	OrigLen    uint32
}

// OutputPacket is the final output sent to reporters.
type OutputPacket struct {
	// Envelope
	AgentID   string
	Timestamp time.Time

	// Network context
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	// Labels from internal/dissect
	Labels Labels

	// Typed payload
	PayloadType string // "nf2"
	Payload     any    // *eventcap.Frame for PayloadType "nf2"
	RawPayload  []byte // Raw payload (optional preservation)
}
