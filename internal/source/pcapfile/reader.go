// Package pcapfile reads and writes capture files holding event capture
// traffic.
package pcapfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/nf2cap/internal/source"
)

// ngMagic starts every pcapng section header block.
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader is a source over a pcap or pcapng stream.
type Reader struct {
	r      packetReader
	closer io.Closer
}

var _ source.Source = (*Reader)(nil)

// Open opens the capture file at path. "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "" {
		return nil, errors.New("pcapfile: path is required")
	}
	if path == "-" {
		return NewReader(os.Stdin, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: open %s: %w", path, err)
	}
	r, err := NewReader(f, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s: %w", path, err)
	}
	return r, nil
}

// NewReader sniffs the format of r. closer, when not nil, is closed by
// Close.
func NewReader(r io.Reader, closer io.Closer) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("pcapfile: read magic: %w", err)
	}

	var pr packetReader
	if bytes.Equal(magic, ngMagic) {
		pr, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		pr, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, err
	}
	return &Reader{r: pr, closer: closer}, nil
}

// ReadPacketData implements gopacket.PacketDataSource.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return r.r.ReadPacketData()
}

// LinkType reports the link type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.r.LinkType()
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
