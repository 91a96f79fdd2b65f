package pcapfile

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultPort is the UDP port frames are addressed to when none is set.
const DefaultPort = 975

// Endpoints addresses the UDP datagrams frames are wrapped in.
type Endpoints struct {
	SrcMAC, DstMAC   net.HardwareAddr
	SrcIP, DstIP     netip.Addr
	SrcPort, DstPort uint16
}

// DefaultEndpoints returns a point-to-point IPv4 pair on DefaultPort.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SrcMAC:  net.HardwareAddr{0x00, 0x4E, 0x46, 0x32, 0x00, 0x01},
		DstMAC:  net.HardwareAddr{0x00, 0x4E, 0x46, 0x32, 0x00, 0x02},
		SrcIP:   netip.MustParseAddr("192.168.0.1"),
		DstIP:   netip.MustParseAddr("192.168.0.2"),
		SrcPort: DefaultPort,
		DstPort: DefaultPort,
	}
}

// Writer writes Ethernet pcap files.
type Writer struct {
	w       *pcapgo.Writer
	ep      Endpoints
	snapLen uint32
	buf     gopacket.SerializeBuffer
}

// NewWriter writes the file header to w. Frames are wrapped in UDP
// datagrams between ep.
func NewWriter(w io.Writer, snapLen uint32, ep Endpoints) (*Writer, error) {
	if !ep.SrcIP.IsValid() || !ep.DstIP.IsValid() || ep.SrcIP.Is4() != ep.DstIP.Is4() {
		return nil, fmt.Errorf("pcapfile: endpoints %v -> %v are not one address family", ep.SrcIP, ep.DstIP)
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("pcapfile: write header: %w", err)
	}
	return &Writer{w: pw, ep: ep, snapLen: snapLen, buf: gopacket.NewSerializeBuffer()}, nil
}

// WriteFrame wraps frame in Ethernet, IP and UDP and records it at ts.
func (w *Writer) WriteFrame(ts time.Time, frame []byte) error {
	data, err := w.encapsulate(frame)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		Length:        len(data),
		CaptureLength: min(len(data), int(w.snapLen)),
	}
	return w.w.WritePacket(ci, data[:ci.CaptureLength])
}

func (w *Writer) encapsulate(frame []byte) ([]byte, error) {
	eth := &layers.Ethernet{SrcMAC: w.ep.SrcMAC, DstMAC: w.ep.DstMAC}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(w.ep.SrcPort),
		DstPort: layers.UDPPort(w.ep.DstPort),
	}

	var network gopacket.SerializableLayer
	if w.ep.SrcIP.Is4() {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    w.ep.SrcIP.AsSlice(),
			DstIP:    w.ep.DstIP.AsSlice(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      w.ep.SrcIP.AsSlice(),
			DstIP:      w.ep.DstIP.AsSlice(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(w.buf, opts, eth, network, udp, gopacket.Payload(frame)); err != nil {
		return nil, fmt.Errorf("pcapfile: serialize: %w", err)
	}
	out := make([]byte, len(w.buf.Bytes()))
	copy(out, w.buf.Bytes())
	return out, nil
}
