// Package decoder strips link, network and transport headers from captured
// packets to reach the event capture payload.
package decoder

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/nf2cap/internal/core"
)

// Decoder decodes one link-layer packet. The returned payload aliases data.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	eth   layers.Ethernet
	dot1q layers.Dot1Q
	sll   layers.LinuxSLL
	ip4   layers.IPv4
	ip6   layers.IPv6
	udp   layers.UDP
	tcp   layers.TCP

	// raw link types pick the parser from the IP version nibble.
	raw bool
	// gopacket does not flag short link headers as truncated.
	linkLen int

	parser  *gopacket.DecodingLayerParser
	parser6 *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// New returns a decoder for packets of link type lt.
func New(lt layers.LinkType) (*Decoder, error) {
	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 8)}
	switch lt {
	case layers.LinkTypeEthernet:
		d.parser = d.newParser(layers.LayerTypeEthernet)
		d.linkLen = 14
	case layers.LinkTypeLinuxSLL:
		d.parser = d.newParser(layers.LayerTypeLinuxSLL)
		d.linkLen = 16
	case layers.LinkTypeIPv4:
		d.parser = d.newParser(layers.LayerTypeIPv4)
	case layers.LinkTypeIPv6:
		d.parser = d.newParser(layers.LayerTypeIPv6)
	case layers.LinkTypeRaw:
		d.raw = true
		d.parser = d.newParser(layers.LayerTypeIPv4)
		d.parser6 = d.newParser(layers.LayerTypeIPv6)
	default:
		return nil, fmt.Errorf("%w: link type %s", core.ErrUnsupportedProto, lt)
	}
	return d, nil
}

func (d *Decoder) newParser(first gopacket.LayerType) *gopacket.DecodingLayerParser {
	p := gopacket.NewDecodingLayerParser(first, &d.eth, &d.dot1q, &d.sll, &d.ip4, &d.ip6, &d.udp, &d.tcp)
	p.IgnoreUnsupported = true
	return p
}

// Decode fills a DecodedPacket from data. Packets cut short inside a header
// fail with core.ErrPacketTooShort. Malformed headers and packets that do not
// reach a UDP or TCP header, including IP fragments, fail with
// core.ErrUnsupportedProto.
func (d *Decoder) Decode(data []byte, ci gopacket.CaptureInfo) (core.DecodedPacket, error) {
	pkt := core.DecodedPacket{
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}

	if len(data) < d.linkLen {
		return pkt, fmt.Errorf("%w: %d byte link header", core.ErrPacketTooShort, len(data))
	}

	parser := d.parser
	if d.raw && len(data) > 0 && data[0]>>4 == 6 {
		parser = d.parser6
	}
	if err := parser.DecodeLayers(data, &d.decoded); err != nil {
		if parser.Truncated {
			return pkt, fmt.Errorf("%w: %v", core.ErrPacketTooShort, err)
		}
		return pkt, fmt.Errorf("%w: malformed: %v", core.ErrUnsupportedProto, err)
	}

	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			pkt.IP = ipHeader(4, d.ip4.SrcIP, d.ip4.DstIP, uint8(d.ip4.Protocol))
		case layers.LayerTypeIPv6:
			pkt.IP = ipHeader(6, d.ip6.SrcIP, d.ip6.DstIP, uint8(d.ip6.NextHeader))
		case layers.LayerTypeUDP:
			pkt.Transport = core.TransportHeader{
				SrcPort:  uint16(d.udp.SrcPort),
				DstPort:  uint16(d.udp.DstPort),
				Protocol: core.ProtocolUDP,
			}
			pkt.Payload = d.udp.Payload
			return pkt, nil
		case layers.LayerTypeTCP:
			pkt.Transport = core.TransportHeader{
				SrcPort:  uint16(d.tcp.SrcPort),
				DstPort:  uint16(d.tcp.DstPort),
				Protocol: core.ProtocolTCP,
			}
			pkt.Payload = d.tcp.Payload
			return pkt, nil
		}
	}
	return pkt, fmt.Errorf("%w: no udp or tcp layer", core.ErrUnsupportedProto)
}

func ipHeader(version uint8, src, dst []byte, proto uint8) core.IPHeader {
	s, _ := netip.AddrFromSlice(src)
	t, _ := netip.AddrFromSlice(dst)
	return core.IPHeader{Version: version, SrcIP: s.Unmap(), DstIP: t.Unmap(), Protocol: proto}
}
