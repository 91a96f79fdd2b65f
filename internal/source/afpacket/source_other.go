//go:build !linux

package afpacket

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrUnsupported is returned by Open off Linux.
var ErrUnsupported = errors.New("afpacket: live capture requires linux")

// Source is unavailable on this platform.
type Source struct{}

func Open(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

func (s *Source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return nil, gopacket.CaptureInfo{}, ErrUnsupported
}

func (s *Source) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (s *Source) Close() error { return nil }
