// Package afpacket captures live traffic through a Linux TPACKET_V3 ring.
package afpacket

import (
	"errors"
	"time"
)

// Config configures a live capture.
type Config struct {
	Interface    string        `mapstructure:"interface"`
	SnapLen      int           `mapstructure:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	FanoutID     uint16        `mapstructure:"fanout_id"`
	UDPPorts     []uint16      `mapstructure:"udp_ports"`
	TCPPorts     []uint16      `mapstructure:"tcp_ports"`
}

// Validate checks the fields Open depends on.
func (c Config) Validate() error {
	if c.Interface == "" {
		return errors.New("afpacket: interface is required")
	}
	if c.SnapLen <= 0 {
		return errors.New("afpacket: snap_len must be positive")
	}
	if c.BufferSizeMB <= 0 {
		return errors.New("afpacket: buffer_size_mb must be positive")
	}
	if c.PollTimeout <= 0 {
		return errors.New("afpacket: poll_timeout must be positive")
	}
	return nil
}
