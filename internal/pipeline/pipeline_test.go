package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/eventcap"
	"firestige.xyz/nf2cap/internal/filter"
	"firestige.xyz/nf2cap/internal/reporter"
	"firestige.xyz/nf2cap/internal/source/pcapfile"
)

// stubReporter collects reported packets.
type stubReporter struct {
	mu      sync.Mutex
	packets []*core.OutputPacket
	flushes int
	fail    error
}

func (r *stubReporter) Name() string { return "stub" }

func (r *stubReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, pkt)
	return nil
}

func (r *stubReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *stubReporter) Close() error { return nil }

func (r *stubReporter) seqs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.packets))
	for _, p := range r.packets {
		out = append(out, p.Payload.(*eventcap.Frame).Header.Seq)
	}
	return out
}

// sliceSource replays prepared Ethernet packets.
type sliceSource struct {
	packets  [][]byte
	timeouts int // ErrSourceTimeout results before the first packet
	endErr   error
	next     int
}

func (s *sliceSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if s.timeouts > 0 {
		s.timeouts--
		return nil, gopacket.CaptureInfo{}, core.ErrSourceTimeout
	}
	if s.next >= len(s.packets) {
		if s.endErr != nil {
			return nil, gopacket.CaptureInfo{}, s.endErr
		}
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	data := s.packets[s.next]
	s.next++
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, int64(s.next)), CaptureLength: len(data), Length: len(data)}
	return data, ci, nil
}

func (s *sliceSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (s *sliceSource) Close() error              { return nil }

// idleSource never yields a packet.
type idleSource struct{}

func (idleSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	time.Sleep(time.Millisecond)
	return nil, gopacket.CaptureInfo{}, core.ErrSourceTimeout
}
func (idleSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (idleSource) Close() error              { return nil }

func frame(t *testing.T, seq uint32, events ...eventcap.EventType) []byte {
	t.Helper()
	b := eventcap.NewBuilder(eventcap.Header{Version: 1, Seq: seq}).WithEventCount()
	for i, ev := range events {
		b.AppendEvent(ev, uint8(i%eventcap.NumQueues), 64, uint32(i))
	}
	buf, err := b.Bytes()
	require.NoError(t, err)
	return buf
}

func packet(t *testing.T, proto layers.IPProtocol, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4, TTL: 64, Protocol: proto,
		SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2),
	}
	var l4 gopacket.SerializableLayer
	switch proto {
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		l4 = udp
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), ACK: true, Window: 1024}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		l4 = tcp
	default:
		l4 = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload(payload)))
	return buf.Bytes()
}

func ports(ps ...uint16) map[uint16]struct{} {
	m := make(map[uint16]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}

func run(t *testing.T, cfg Config) (*Pipeline, *stubReporter) {
	t.Helper()
	rep, ok := cfg.Reporter.(*stubReporter)
	if !ok {
		rep = &stubReporter{}
		cfg.Reporter = rep
	}
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	return p, rep
}

func TestRunPcapFile(t *testing.T) {
	var buf bytes.Buffer
	w, err := pcapfile.NewWriter(&buf, 65535, pcapfile.DefaultEndpoints())
	require.NoError(t, err)
	ts := time.Unix(1700000000, 0).UTC()
	for seq := range uint32(3) {
		require.NoError(t, w.WriteFrame(ts.Add(time.Duration(seq)*time.Second), frame(t, seq, eventcap.TypeArrive, eventcap.TypeDepart)))
	}

	src, err := pcapfile.NewReader(&buf, nil)
	require.NoError(t, err)

	p, rep := run(t, Config{AgentID: "agent-1", Source: src, UDPPorts: ports(975), Workers: 2})

	assert.Equal(t, []uint32{0, 1, 2}, rep.seqs())
	assert.Equal(t, 1, rep.flushes)

	first := rep.packets[0]
	assert.Equal(t, "agent-1", first.AgentID)
	assert.Equal(t, ts, first.Timestamp.UTC())
	assert.Equal(t, "192.168.0.1", first.SrcIP.String())
	assert.Equal(t, uint16(975), first.DstPort)
	assert.Equal(t, core.ProtocolUDP, first.Protocol)
	assert.Equal(t, reporter.PayloadTypeNF2, first.PayloadType)
	assert.Equal(t, "2", first.Labels[core.LabelNF2Records])
	assert.Nil(t, first.RawPayload)
	assert.Len(t, first.Payload.(*eventcap.Frame).Records, 2)

	assert.Equal(t, Stats{Packets: 3, Frames: 3, Reported: 3}, p.Stats())
}

func TestRunPreservesOrder(t *testing.T) {
	src := &sliceSource{timeouts: 3}
	for seq := range uint32(50) {
		src.packets = append(src.packets, packet(t, layers.IPProtocolUDP, 40000, 975, frame(t, seq, eventcap.TypeDrop)))
	}

	_, rep := run(t, Config{Source: src, UDPPorts: ports(975), Workers: 4})

	want := make([]uint32, 50)
	for i := range want {
		want[i] = uint32(i)
	}
	assert.Equal(t, want, rep.seqs())
}

func TestRunMixedTraffic(t *testing.T) {
	src := &sliceSource{packets: [][]byte{
		packet(t, layers.IPProtocolUDP, 40000, 975, frame(t, 1, eventcap.TypeArrive)),
		packet(t, layers.IPProtocolUDP, 40000, 53, []byte("dns")),
		packet(t, layers.IPProtocolTCP, 975, 5000, frame(t, 2)),
		packet(t, layers.IPProtocolTCP, 5000, 975, nil),
		packet(t, layers.IPProtocolICMPv4, 0, 0, nil),
		packet(t, layers.IPProtocolUDP, 975, 975, make([]byte, 10)),
	}}

	p, rep := run(t, Config{Source: src, UDPPorts: ports(975), TCPPorts: ports(975), WarnLimit: 1})

	assert.Equal(t, []uint32{1, 2}, rep.seqs())
	assert.Equal(t, core.ProtocolTCP, rep.packets[1].Protocol)
	assert.Equal(t, Stats{
		Packets:     6,
		Undecodable: 1,
		Unmatched:   2,
		Frames:      2,
		TooShort:    1,
		Reported:    2,
	}, p.Stats())
}

func TestRunSuppressesRepeatedWarnings(t *testing.T) {
	src := &sliceSource{}
	for range 3 {
		src.packets = append(src.packets, packet(t, layers.IPProtocolUDP, 975, 975, make([]byte, 10)))
	}

	p, _ := run(t, Config{Source: src, UDPPorts: ports(975), WarnLimit: 1, WarnWindow: time.Hour})

	assert.Equal(t, uint64(3), p.Stats().TooShort)
	assert.Equal(t, int64(2), p.warn.Suppressed())
	assert.Equal(t, 1, p.warn.Sources())
}

func TestRunPortSelection(t *testing.T) {
	packets := func() *sliceSource {
		return &sliceSource{packets: [][]byte{
			packet(t, layers.IPProtocolUDP, 40000, 975, frame(t, 1)),
			packet(t, layers.IPProtocolUDP, 40000, 9999, frame(t, 2)),
			packet(t, layers.IPProtocolTCP, 9999, 40000, frame(t, 3)),
		}}
	}

	tests := []struct {
		name string
		cfg  Config
		want []uint32
	}{
		{"udp 975", Config{UDPPorts: ports(975)}, []uint32{1}},
		{"source port", Config{UDPPorts: ports(40000)}, []uint32{1, 2}},
		{"tcp only", Config{TCPPorts: ports(9999)}, []uint32{3}},
		{"any port", Config{AnyPort: true}, []uint32{1, 2, 3}},
		{"none", Config{}, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Source = packets()
			_, rep := run(t, cfg)
			assert.Equal(t, tt.want, rep.seqs())
		})
	}
}

func TestRunFilter(t *testing.T) {
	packets := func() *sliceSource {
		return &sliceSource{packets: [][]byte{
			packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 1, eventcap.TypeArrive, eventcap.TypeDrop)),
			packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 2, eventcap.TypeArrive)),
		}}
	}
	f, err := filter.Compile(`type == "drop"`)
	require.NoError(t, err)

	t.Run("keep empty", func(t *testing.T) {
		p, rep := run(t, Config{Source: packets(), UDPPorts: ports(975), Filter: f})
		require.Equal(t, []uint32{1, 2}, rep.seqs())
		assert.Len(t, rep.packets[0].Payload.(*eventcap.Frame).Records, 1)
		assert.Empty(t, rep.packets[1].Payload.(*eventcap.Frame).Records)
		// Labels describe the frame as decoded.
		assert.Equal(t, "2", rep.packets[0].Labels[core.LabelNF2Records])
		assert.Zero(t, p.Stats().Skipped)
	})

	t.Run("skip empty", func(t *testing.T) {
		p, rep := run(t, Config{Source: packets(), UDPPorts: ports(975), Filter: f, SkipEmpty: true})
		assert.Equal(t, []uint32{1}, rep.seqs())
		assert.Equal(t, uint64(1), p.Stats().Skipped)
		assert.Equal(t, uint64(2), p.Stats().Frames)
	})

	t.Run("skip empty without filter", func(t *testing.T) {
		_, rep := run(t, Config{
			Source:   &sliceSource{packets: [][]byte{packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 3))}},
			UDPPorts: ports(975), SkipEmpty: true,
		})
		assert.Equal(t, []uint32{3}, rep.seqs())
	})
}

func TestRunKeepRaw(t *testing.T) {
	payload := frame(t, 9, eventcap.TypeArrive)
	src := &sliceSource{packets: [][]byte{packet(t, layers.IPProtocolUDP, 975, 975, payload)}}

	_, rep := run(t, Config{Source: src, UDPPorts: ports(975), KeepRaw: true})

	require.Len(t, rep.packets, 1)
	assert.Equal(t, payload, rep.packets[0].RawPayload)
}

func TestRunReportErrors(t *testing.T) {
	src := &sliceSource{packets: [][]byte{
		packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 1)),
		packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 2)),
	}}
	rep := &stubReporter{fail: errors.New("broker down")}

	p, _ := run(t, Config{Source: src, Reporter: rep, UDPPorts: ports(975)})

	st := p.Stats()
	assert.Equal(t, uint64(2), st.ReportErrors)
	assert.Zero(t, st.Reported)
	assert.Equal(t, 1, rep.flushes)
}

func TestRunReadError(t *testing.T) {
	src := &sliceSource{
		packets: [][]byte{packet(t, layers.IPProtocolUDP, 975, 975, frame(t, 1))},
		endErr:  io.ErrUnexpectedEOF,
	}
	rep := &stubReporter{}
	p, err := New(Config{Source: src, Reporter: rep, UDPPorts: ports(975)})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	// Frames read before the error are still reported.
	assert.Equal(t, []uint32{1}, rep.seqs())
	assert.Equal(t, 1, rep.flushes)
}

func TestRunCancel(t *testing.T) {
	rep := &stubReporter{}
	p, err := New(Config{Source: idleSource{}, Reporter: rep, AnyPort: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, rep.flushes)
}

type rawSource struct{ sliceSource }

func (rawSource) LinkType() layers.LinkType { return layers.LinkTypeIEEE802_11 }

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no source", Config{Reporter: &stubReporter{}}, nil},
		{"no reporter", Config{Source: &sliceSource{}}, nil},
		{"link type", Config{Source: &rawSource{}, Reporter: &stubReporter{}}, core.ErrUnsupportedProto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	gc := &config.GlobalConfig{}
	gc.Node.ID = "node-7"
	gc.Capture.UDPPorts = []uint16{975}
	gc.Capture.TCPPorts = []uint16{975, 976}
	gc.Decode.Workers = 3
	gc.Decode.Filter = `len > 64`
	gc.Decode.SkipEmpty = true

	src := &sliceSource{}
	rep := &stubReporter{}
	cfg, err := FromConfig(gc, src, rep)
	require.NoError(t, err)

	assert.Equal(t, "node-7", cfg.AgentID)
	assert.Equal(t, ports(975), cfg.UDPPorts)
	assert.Equal(t, ports(975, 976), cfg.TCPPorts)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "len > 64", cfg.Filter.String())
	assert.True(t, cfg.SkipEmpty)
	assert.Equal(t, DefaultWarnLimit, cfg.WarnLimit)

	gc.Decode.Filter = `len >`
	_, err = FromConfig(gc, src, rep)
	assert.Error(t, err)
}
