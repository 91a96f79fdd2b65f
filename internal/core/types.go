// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// IP protocol numbers of the transports frames travel on.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// IPHeader carries the L3 addressing of a packet that held a frame.
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // TCP=6, UDP=17
}

// TransportHeader carries the L4 ports of a packet that held a frame.
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // Redundant storage for convenience
}
