// Package source provides the packet sources frames are read from.
package source

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Source yields link-layer packets. ReadPacketData returns io.EOF once a
// finite source is drained and core.ErrSourceTimeout when a live source saw
// no traffic within its poll timeout.
type Source interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
	Close() error
}
