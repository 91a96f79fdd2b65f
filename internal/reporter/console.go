package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/eventcap"
	"firestige.xyz/nf2cap/internal/log"
)

func init() {
	Register("console", func(options map[string]interface{}) (Reporter, error) {
		return NewConsoleReporter(os.Stdout, options)
	})
}

// ConsoleConfig configures the console reporter.
type ConsoleConfig struct {
	Format  string `mapstructure:"format"`  // text, json or yaml; default text
	Verbose bool   `mapstructure:"verbose"` // text only: include queue depths
}

// ConsoleReporter prints frames for humans or for jq.
type ConsoleReporter struct {
	mu       sync.Mutex
	w        io.Writer
	cfg      ConsoleConfig
	reported atomic.Uint64
}

// NewConsoleReporter writes to w.
func NewConsoleReporter(w io.Writer, options map[string]interface{}) (*ConsoleReporter, error) {
	cfg := ConsoleConfig{Format: "text"}
	if err := decodeOptions(options, &cfg); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("invalid format %q, must be text, json or yaml", cfg.Format)
	}
	return &ConsoleReporter{w: w, cfg: cfg}, nil
}

func (r *ConsoleReporter) Name() string { return "console" }

func (r *ConsoleReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return fmt.Errorf("nil packet")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch r.cfg.Format {
	case "json":
		err = json.NewEncoder(r.w).Encode(NewPacketView(pkt))
	case "yaml":
		err = r.reportYAML(pkt)
	default:
		err = r.reportText(pkt)
	}
	if err != nil {
		return err
	}
	r.reported.Add(1)
	return nil
}

func (r *ConsoleReporter) reportYAML(pkt *core.OutputPacket) error {
	if _, err := io.WriteString(r.w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(NewPacketView(pkt)); err != nil {
		return err
	}
	return enc.Close()
}

func (r *ConsoleReporter) reportText(pkt *core.OutputPacket) error {
	f, ok := pkt.Payload.(*eventcap.Frame)
	if !ok || f == nil {
		_, err := fmt.Fprintf(r.w, "[%s] %s type=%s\n",
			pkt.Timestamp.Format("15:04:05.000"), route(pkt), pkt.PayloadType)
		return err
	}

	if _, err := fmt.Fprintf(r.w, "[%s] %s %s\n",
		pkt.Timestamp.Format("15:04:05.000"), route(pkt), f.Summary()); err != nil {
		return err
	}
	if r.cfg.Verbose {
		for i, q := range f.Header.Queues {
			if _, err := fmt.Fprintf(r.w, "    %-5s words=%d packets=%d\n",
				eventcap.QueueName(uint8(i)), q.Words, q.Packets); err != nil {
				return err
			}
		}
	}
	for _, rec := range f.Records {
		if _, err := fmt.Fprintf(r.w, "    %s\n", eventcap.Describe(rec)); err != nil {
			return err
		}
	}
	if f.CountMismatch() {
		if _, err := fmt.Fprintf(r.w, "    ! header announces %d events, decoded %d\n",
			f.Header.NumEvents, f.Decoded); err != nil {
			return err
		}
	}
	return nil
}

func route(pkt *core.OutputPacket) string {
	src, dst := endpoint(pkt.SrcIP, pkt.SrcPort), endpoint(pkt.DstIP, pkt.DstPort)
	if src == "" && dst == "" {
		return "-"
	}
	if p := protocolName(pkt.Protocol); p != "" {
		return fmt.Sprintf("%s -> %s %s", src, dst, p)
	}
	return src + " -> " + dst
}

// Flush is a no-op; writes are unbuffered.
func (r *ConsoleReporter) Flush(ctx context.Context) error { return nil }

func (r *ConsoleReporter) Close() error {
	log.GetLogger().WithField("total_reported", r.reported.Load()).Debug("console reporter closed")
	return nil
}
