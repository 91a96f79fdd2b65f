package source

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4Packet(t *testing.T, proto layers.IPProtocol, src, dst uint16, fragOffset uint16) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TTL:        64,
		Protocol:   proto,
		FragOffset: fragOffset,
		SrcIP:      net.IP{10, 0, 0, 1},
		DstIP:      net.IP{10, 0, 0, 2},
	}
	payload := gopacket.Payload([]byte("frame"))
	switch proto {
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(src), DstPort: layers.UDPPort(dst)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		return serialize(t, eth, ip, udp, payload)
	default:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(src), DstPort: layers.TCPPort(dst), DataOffset: 5, Window: 1024}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		return serialize(t, eth, ip, tcp, payload)
	}
}

func ipv6Packet(t *testing.T, proto layers.IPProtocol, src, dst uint16) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: proto,
		SrcIP:      net.ParseIP("fd00::1"),
		DstIP:      net.ParseIP("fd00::2"),
	}
	payload := gopacket.Payload([]byte("frame"))
	switch proto {
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(src), DstPort: layers.UDPPort(dst)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		return serialize(t, eth, ip, udp, payload)
	default:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(src), DstPort: layers.TCPPort(dst), DataOffset: 5, Window: 1024}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		return serialize(t, eth, ip, tcp, payload)
	}
}

func TestPortFilter(t *testing.T) {
	prog, err := PortFilter([]uint16{975, 2000}, []uint16{6633}, 0xFFFF)
	require.NoError(t, err)
	vm, err := bpf.NewVM(prog)
	require.NoError(t, err)

	tests := []struct {
		name   string
		packet []byte
		accept bool
	}{
		{"ipv4 udp dst", ipv4Packet(t, layers.IPProtocolUDP, 40000, 975, 0), true},
		{"ipv4 udp src", ipv4Packet(t, layers.IPProtocolUDP, 2000, 40000, 0), true},
		{"ipv4 udp other", ipv4Packet(t, layers.IPProtocolUDP, 40000, 53, 0), false},
		{"ipv4 tcp dst", ipv4Packet(t, layers.IPProtocolTCP, 40000, 6633, 0), true},
		{"ipv4 tcp on udp port", ipv4Packet(t, layers.IPProtocolTCP, 40000, 975, 0), false},
		{"ipv4 fragment", ipv4Packet(t, layers.IPProtocolUDP, 40000, 975, 100), false},
		{"ipv6 udp dst", ipv6Packet(t, layers.IPProtocolUDP, 40000, 975), true},
		{"ipv6 tcp src", ipv6Packet(t, layers.IPProtocolTCP, 6633, 40000), true},
		{"ipv6 udp other", ipv6Packet(t, layers.IPProtocolUDP, 40000, 53), false},
		{"truncated", []byte{0, 1, 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := vm.Run(tt.packet)
			require.NoError(t, err)
			if tt.accept {
				assert.Positive(t, n)
			} else {
				assert.Zero(t, n)
			}
		})
	}
}

func TestPortFilterSingleProtocol(t *testing.T) {
	prog, err := PortFilter(nil, []uint16{975}, 1500)
	require.NoError(t, err)
	vm, err := bpf.NewVM(prog)
	require.NoError(t, err)

	n, err := vm.Run(ipv4Packet(t, layers.IPProtocolUDP, 40000, 975, 0))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = vm.Run(ipv4Packet(t, layers.IPProtocolTCP, 40000, 975, 0))
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestPortFilterLimits(t *testing.T) {
	_, err := PortFilter(nil, nil, 1500)
	assert.ErrorIs(t, err, ErrNoPorts)

	many := make([]uint16, MaxFilterPorts+1)
	_, err = PortFilter(many, nil, 1500)
	assert.Error(t, err)

	full := make([]uint16, MaxFilterPorts)
	for i := range full {
		full[i] = uint16(1000 + i)
	}
	raw, err := CompilePortFilter(full, full, 1500)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
