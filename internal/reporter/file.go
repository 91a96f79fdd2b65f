package reporter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/snappy"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/nf2cap/internal/core"
)

func init() {
	Register("file", func(options map[string]interface{}) (Reporter, error) {
		return NewFileReporter(options)
	})
}

// FileConfig configures the file reporter.
type FileConfig struct {
	Path string `mapstructure:"path"`
	// Snappy wraps the stream in the snappy framing format.
	Snappy bool `mapstructure:"snappy"`
	// MaxSizeMB enables size based rotation. It cannot be combined with
	// Snappy.
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"` // gzip rotated files
}

// FileReporter appends one JSON document per frame to a file.
type FileReporter struct {
	mu     sync.Mutex
	cfg    FileConfig
	out    io.WriteCloser
	sw     *snappy.Writer
	bw     *bufio.Writer
	enc    *json.Encoder
	closed bool
}

func NewFileReporter(options map[string]interface{}) (*FileReporter, error) {
	var cfg FileConfig
	if err := decodeOptions(options, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	if cfg.Snappy && cfg.MaxSizeMB > 0 {
		return nil, errors.New("snappy and max_size_mb are mutually exclusive")
	}

	r := &FileReporter{cfg: cfg}
	if cfg.MaxSizeMB > 0 {
		r.out = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
	} else {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		r.out = f
	}

	var w io.Writer = r.out
	if cfg.Snappy {
		r.sw = snappy.NewBufferedWriter(r.out)
		w = r.sw
	} else {
		r.bw = bufio.NewWriter(r.out)
		w = r.bw
	}
	r.enc = json.NewEncoder(w)
	return r, nil
}

func (r *FileReporter) Name() string { return "file" }

func (r *FileReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return fmt.Errorf("nil packet")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}
	return r.enc.Encode(NewPacketView(pkt))
}

func (r *FileReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.flush()
}

func (r *FileReporter) flush() error {
	if r.sw != nil {
		return r.sw.Flush()
	}
	return r.bw.Flush()
}

func (r *FileReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.flush()
	if r.sw != nil {
		err = multierr.Append(err, r.sw.Close())
	}
	return multierr.Append(err, r.out.Close())
}
