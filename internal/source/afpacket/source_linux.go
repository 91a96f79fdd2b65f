//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/source"
)

// Source reads from a TPACKET_V3 ring bound to one interface.
type Source struct {
	tp  *afpacket.TPacket
	cfg Config
}

var _ source.Source = (*Source)(nil)

// Open creates the ring and installs the port filter when ports are
// configured.
func Open(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}
	log.GetLogger().WithFields(logrus.Fields{
		"interface":  cfg.Interface,
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("tpacket configuration")

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket: open %s: %w", cfg.Interface, err)
	}

	if cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: set fanout %d: %w", cfg.FanoutID, err)
		}
	}

	if len(cfg.UDPPorts) > 0 || len(cfg.TCPPorts) > 0 {
		prog, err := source.CompilePortFilter(cfg.UDPPorts, cfg.TCPPorts, uint32(cfg.SnapLen))
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(prog); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: set filter: %w", err)
		}
		log.GetLogger().WithFields(logrus.Fields{
			"udp_ports": cfg.UDPPorts,
			"tcp_ports": cfg.TCPPorts,
		}).Info("port filter installed")
	}

	return &Source{tp: tp, cfg: cfg}, nil
}

// ReadPacketData returns a copy of the next packet. A poll timeout surfaces
// as core.ErrSourceTimeout.
func (s *Source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.tp.ReadPacketData()
	if errors.Is(err, afpacket.ErrTimeout) {
		return nil, ci, core.ErrSourceTimeout
	}
	return data, ci, err
}

func (s *Source) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

// Close logs the ring statistics and releases the socket.
func (s *Source) Close() error {
	if _, v3, err := s.tp.SocketStats(); err == nil {
		log.GetLogger().WithFields(logrus.Fields{
			"interface": s.cfg.Interface,
			"packets":   v3.Packets(),
			"drops":     v3.Drops(),
		}).Info("capture closed")
	}
	s.tp.Close()
	return nil
}
