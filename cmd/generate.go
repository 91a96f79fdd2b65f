package cmd

import (
	"fmt"
	"io"
	"math/rand/v2"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/eventcap"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/source/pcapfile"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a pcap of synthetic event capture frames",
	Long: `Simulate the eight output queues of a router and write the event capture
frames it would emit to a pcap file. The same seed always yields the same
file, which makes the output usable as a test fixture.

Examples:
  nf2cap generate -o sample.pcap
  nf2cap generate -o - --frames 1000 --events 64 --dst 10.0.0.9 | nf2cap read -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var w io.Writer = cmd.OutOrStdout()
		if genOpts.output != "-" {
			f, err := os.Create(genOpts.output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		n, err := runGenerate(w, genOpts)
		if err != nil {
			return err
		}
		log.GetLogger().Infof("wrote %d frames to %s", n, genOpts.output)
		return nil
	},
}

type generateOptions struct {
	output       string
	frames       int
	events       int
	refreshEvery int
	seed         uint64
	start        int64
	interval     time.Duration
	src, dst     string
	port         uint16
	snapLen      uint32
}

var genOpts generateOptions

// Per-frame event budget. Leaves room in the one-byte event count for the
// refreshes a frame may need.
const maxGenerateEvents = 192

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genOpts.output, "output", "o", "", `output pcap file, "-" for stdout (required)`)
	f.IntVar(&genOpts.frames, "frames", 10, "number of frames")
	f.IntVar(&genOpts.events, "events", 16, "short events per frame")
	f.IntVar(&genOpts.refreshEvery, "refresh-every", 0, "also insert a timestamp refresh every N events, 0 disables")
	f.Uint64Var(&genOpts.seed, "seed", 1, "random seed")
	f.Int64Var(&genOpts.start, "start", 1700000000, "capture time of the first frame, unix seconds")
	f.DurationVar(&genOpts.interval, "interval", time.Millisecond, "time between frames")
	f.StringVar(&genOpts.src, "src", "192.168.0.1", "source address of the datagrams")
	f.StringVar(&genOpts.dst, "dst", "192.168.0.2", "destination address of the datagrams")
	f.Uint16Var(&genOpts.port, "port", pcapfile.DefaultPort, "UDP port of the datagrams")
	f.Uint32Var(&genOpts.snapLen, "snap-len", 65535, "snapshot length of the file")
	_ = generateCmd.MarkFlagRequired("output")
}

func runGenerate(w io.Writer, opts generateOptions) (int, error) {
	switch {
	case opts.frames <= 0:
		return 0, fmt.Errorf("--frames must be positive")
	case opts.events < 0 || opts.events > maxGenerateEvents:
		return 0, fmt.Errorf("--events must be within [0, %d]", maxGenerateEvents)
	case opts.refreshEvery != 0 && opts.refreshEvery < 4:
		return 0, fmt.Errorf("--refresh-every must be 0 or at least 4")
	case opts.interval <= 0:
		return 0, fmt.Errorf("--interval must be positive")
	}

	ep := pcapfile.DefaultEndpoints()
	var err error
	if ep.SrcIP, err = netip.ParseAddr(opts.src); err != nil {
		return 0, fmt.Errorf("--src: %w", err)
	}
	if ep.DstIP, err = netip.ParseAddr(opts.dst); err != nil {
		return 0, fmt.Errorf("--dst: %w", err)
	}
	ep.SrcPort, ep.DstPort = opts.port, opts.port

	pw, err := pcapfile.NewWriter(w, opts.snapLen, ep)
	if err != nil {
		return 0, err
	}

	start := time.Unix(opts.start, 0)
	sim := newQueueSim(opts.seed, start)
	for i := range opts.frames {
		at := start.Add(time.Duration(i) * opts.interval)
		sim.advanceTo(at)
		buf, err := sim.frame(uint32(i), opts.events, opts.refreshEvery)
		if err != nil {
			return i, err
		}
		if err := pw.WriteFrame(at, buf); err != nil {
			return i, err
		}
	}
	return opts.frames, nil
}

// queueSim tracks queue occupancy so that generated frames stay
// self-consistent: departures only leave non-empty queues and header depths
// reflect the events of earlier frames.
type queueSim struct {
	rng    *rand.Rand
	ticks  uint64
	queues [eventcap.NumQueues]eventcap.QueueDepth
}

func newQueueSim(seed uint64, start time.Time) *queueSim {
	return &queueSim{
		rng:   rand.New(rand.NewPCG(seed, seed^0x4E4632)),
		ticks: uint64(start.UnixNano()) / uint64(eventcap.TickDuration),
	}
}

func (s *queueSim) advanceTo(t time.Time) {
	if ticks := uint64(t.UnixNano()) / uint64(eventcap.TickDuration); ticks > s.ticks {
		s.ticks = ticks
	}
}

func (s *queueSim) frame(seq uint32, events, refreshEvery int) ([]byte, error) {
	h := eventcap.Header{
		Version:   1,
		Seq:       seq,
		Queues:    s.queues,
		Timestamp: eventcap.TimestampFromTicks(s.ticks),
	}
	b := eventcap.NewBuilder(h).WithEventCount()

	// Short events only carry the low timestamp bits; refresh whenever the
	// high bits move away from what the decoder is tracking.
	base := s.ticks
	for i := range events {
		s.ticks += 1 + s.rng.Uint64N(4096)
		periodic := refreshEvery > 0 && i > 0 && i%refreshEvery == 0
		if periodic || s.ticks&^uint64(eventcap.TimeLSBMask) != base&^uint64(eventcap.TimeLSBMask) {
			b.AppendTimestamp(eventcap.TimestampFromTicks(s.ticks))
			base = s.ticks
		}

		q := uint8(s.rng.IntN(eventcap.NumQueues))
		words := 1 + uint32(s.rng.IntN(189))
		kind := s.pick(q)
		s.apply(kind, q, words)
		b.AppendEvent(kind, q, words, uint32(s.ticks)&eventcap.TimeLSBMask)
	}
	return b.Bytes()
}

func (s *queueSim) pick(q uint8) eventcap.EventType {
	n := s.rng.IntN(10)
	switch {
	case n == 0:
		return eventcap.TypeDrop
	case s.queues[q].Packets > 0 && n >= 6:
		return eventcap.TypeDepart
	default:
		return eventcap.TypeArrive
	}
}

func (s *queueSim) apply(kind eventcap.EventType, q uint8, words uint32) {
	d := &s.queues[q]
	switch kind {
	case eventcap.TypeArrive:
		d.Packets++
		d.Words += words
	case eventcap.TypeDepart:
		d.Packets--
		d.Words -= min(words, d.Words)
	}
}
