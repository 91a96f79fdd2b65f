// Package pipeline reads packets from a source, decodes the event capture
// frames they carry and hands them to a reporter.
//
// The read loop strips L2-L4 headers on a single goroutine. Frame decoding
// and filtering fan out to a bounded set of workers; results are reported
// in capture order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sourcegraph/conc/stream"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/core/decoder"
	"firestige.xyz/nf2cap/internal/dissect"
	"firestige.xyz/nf2cap/internal/eventcap"
	"firestige.xyz/nf2cap/internal/filter"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/metrics"
	"firestige.xyz/nf2cap/internal/reporter"
	"firestige.xyz/nf2cap/internal/source"
)

// Packet outcomes as counted by metrics.CapturePacketsTotal.
const (
	OutcomeMatched     = "matched"
	OutcomeUnmatched   = "unmatched"
	OutcomeUndecodable = "undecodable"
)

// Config contains pipeline configuration.
type Config struct {
	AgentID  string
	Source   source.Source
	Reporter reporter.Reporter

	// Payloads are decoded when either port of the packet is in the set of
	// its transport protocol. AnyPort decodes every UDP and TCP payload.
	UDPPorts map[uint16]struct{}
	TCPPorts map[uint16]struct{}
	AnyPort  bool

	Workers   int // <= 0 means 1
	Filter    *filter.Filter
	SkipEmpty bool // Drop frames left without records by Filter
	KeepRaw   bool // Attach the undecoded payload to reported packets

	// WarnLimit caps too-short warnings per source address and WarnWindow.
	// Zero logs every one.
	WarnLimit  int
	WarnWindow time.Duration
}

// Pipeline is one run over a source. It is not restartable.
type Pipeline struct {
	cfg     Config
	decoder *decoder.Decoder
	warn    *warnLimiter
	stats   counters
	log     log.Logger
}

// New validates cfg and prepares a decoder for the source's link type.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: no source")
	}
	if cfg.Reporter == nil {
		return nil, errors.New("pipeline: no reporter")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	dec, err := decoder.New(cfg.Source.LinkType())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Pipeline{
		cfg:     cfg,
		decoder: dec,
		warn:    newWarnLimiter(cfg.WarnLimit, cfg.WarnWindow),
		log: log.GetLogger().WithFields(map[string]interface{}{
			"agent":    cfg.AgentID,
			"reporter": cfg.Reporter.Name(),
		}),
	}, nil
}

// Stats returns a snapshot of the pipeline counters. It is safe to call
// while Run is in progress.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// Run reads the source until it is drained or ctx is cancelled, then waits
// for in-flight frames and flushes the reporter. Cancellation is not an
// error. Frames already read are still reported after ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Infof("pipeline starting: link=%s workers=%d filter=%s",
		p.cfg.Source.LinkType(), p.cfg.Workers, p.cfg.Filter)

	s := stream.New().WithMaxGoroutines(p.cfg.Workers)
	readErr := p.readLoop(ctx, s)
	s.Wait()

	flushErr := p.cfg.Reporter.Flush(context.WithoutCancel(ctx))
	if flushErr != nil {
		p.log.WithError(flushErr).Error("reporter flush failed")
	}

	st := p.Stats()
	p.log.Infof("pipeline stopped: packets=%d frames=%d reported=%d too_short=%d skipped=%d report_errors=%d",
		st.Packets, st.Frames, st.Reported, st.TooShort, st.Skipped, st.ReportErrors)
	if n := p.warn.Suppressed(); n > 0 {
		p.log.Infof("%d too-short warnings suppressed, %d sources in last window", n, p.warn.Sources())
	}

	if readErr != nil {
		return readErr
	}
	return flushErr
}

func (p *Pipeline) readLoop(ctx context.Context, s *stream.Stream) error {
	for ctx.Err() == nil {
		data, ci, err := p.cfg.Source.ReadPacketData()
		switch {
		case errors.Is(err, core.ErrSourceTimeout):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("pipeline: read: %w", err)
		}
		p.stats.Packets.Add(1)

		pkt, err := p.decoder.Decode(data, ci)
		if err != nil {
			p.stats.Undecodable.Add(1)
			metrics.CapturePacketsTotal.WithLabelValues(OutcomeUndecodable).Inc()
			if p.log.IsDebugEnabled() {
				p.log.WithError(err).Debug("packet skipped")
			}
			continue
		}
		if !p.match(pkt.Transport) || len(pkt.Payload) == 0 {
			p.stats.Unmatched.Add(1)
			metrics.CapturePacketsTotal.WithLabelValues(OutcomeUnmatched).Inc()
			continue
		}
		metrics.CapturePacketsTotal.WithLabelValues(OutcomeMatched).Inc()

		s.Go(func() stream.Callback {
			res := p.decode(pkt.Payload)
			return func() { p.emit(ctx, pkt, res) }
		})
	}
	return nil
}

func (p *Pipeline) match(t core.TransportHeader) bool {
	var ports map[uint16]struct{}
	switch t.Protocol {
	case core.ProtocolUDP:
		ports = p.cfg.UDPPorts
	case core.ProtocolTCP:
		ports = p.cfg.TCPPorts
	default:
		return false
	}
	if p.cfg.AnyPort {
		return true
	}
	_, src := ports[t.SrcPort]
	_, dst := ports[t.DstPort]
	return src || dst
}

type result struct {
	frame    *eventcap.Frame // As decoded
	filtered *eventcap.Frame // After the filter; frame when there is none
	elapsed  time.Duration
	err      error
}

// decode runs on a worker goroutine.
func (p *Pipeline) decode(payload []byte) result {
	start := time.Now()
	frame, err := eventcap.DecodeFrame(payload)
	if err != nil {
		return result{err: err}
	}
	elapsed := time.Since(start)

	filtered, err := p.cfg.Filter.Apply(frame)
	if err != nil {
		return result{frame: frame, err: err}
	}
	return result{frame: frame, filtered: filtered, elapsed: elapsed}
}

// emit runs on the stream's callback goroutine, one frame at a time.
func (p *Pipeline) emit(ctx context.Context, pkt core.DecodedPacket, res result) {
	if res.frame == nil {
		p.stats.TooShort.Add(1)
		metrics.FramesTotal.WithLabelValues(metrics.ResultTooShort).Inc()
		if p.warn.Allow(pkt.IP.SrcIP, time.Now()) {
			p.log.WithFields(map[string]interface{}{
				"src": pkt.IP.SrcIP,
				"len": len(pkt.Payload),
			}).Warn("payload shorter than a frame header")
		}
		return
	}

	p.stats.Frames.Add(1)
	metrics.ObserveFrame(res.frame, res.elapsed)

	if res.err != nil {
		p.stats.Skipped.Add(1)
		metrics.FramesTotal.WithLabelValues(metrics.ResultFiltered).Inc()
		p.log.WithError(res.err).Error("filter failed, frame dropped")
		return
	}
	if p.cfg.Filter != nil && p.cfg.SkipEmpty && len(res.filtered.Records) == 0 {
		p.stats.Skipped.Add(1)
		metrics.FramesTotal.WithLabelValues(metrics.ResultFiltered).Inc()
		return
	}

	out := &core.OutputPacket{
		AgentID:     p.cfg.AgentID,
		Timestamp:   pkt.Timestamp,
		SrcIP:       pkt.IP.SrcIP,
		DstIP:       pkt.IP.DstIP,
		SrcPort:     pkt.Transport.SrcPort,
		DstPort:     pkt.Transport.DstPort,
		Protocol:    pkt.Transport.Protocol,
		Labels:      dissect.Labels(res.frame),
		PayloadType: reporter.PayloadTypeNF2,
		Payload:     res.filtered,
	}
	if p.cfg.KeepRaw {
		out.RawPayload = pkt.Payload
	}

	if err := p.cfg.Reporter.Report(context.WithoutCancel(ctx), out); err != nil {
		p.stats.ReportErrors.Add(1)
		metrics.ReporterErrorsTotal.Inc()
		p.log.WithError(err).Errorf("report failed: seq=%d", res.frame.Header.Seq)
		return
	}
	p.stats.Reported.Add(1)
}
