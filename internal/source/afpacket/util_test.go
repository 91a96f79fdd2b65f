package afpacket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeSize(t *testing.T) {
	tests := []struct {
		name                  string
		bufferMB, snap, page  int
		frame, block, nblocks int
	}{
		{"jumbo snap", 64, 65535, 4096, 69632, 15 * 69632, 64},
		{"ethernet mtu", 8, 1500, 4096, 2048, 1 << 20, 8},
		{"tiny snap", 1, 1, 4096, 64, 1 << 20, 1},
		{"large page", 16, 1500, 65536, 2048, 1 << 20, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, block, n, err := recomputeSize(tt.bufferMB, tt.snap, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.frame, frame)
			assert.Equal(t, tt.block, block)
			assert.Equal(t, tt.nblocks, n)

			assert.Zero(t, frame%tpacketAlignment)
			assert.Zero(t, block%tt.page)
			assert.Zero(t, block%frame)
			assert.GreaterOrEqual(t, frame, tpacketHdrLen+tt.snap)
		})
	}
}

func TestRecomputeSizeErrors(t *testing.T) {
	tests := []struct {
		name                 string
		bufferMB, snap, page int
	}{
		{"zero buffer", 0, 1500, 4096},
		{"zero snap", 8, 0, 4096},
		{"odd page", 8, 1500, 4000},
		{"buffer below one block", 1, 2 << 20, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := recomputeSize(tt.bufferMB, tt.snap, tt.page)
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Interface: "eth0", SnapLen: 1500, BufferSizeMB: 8, PollTimeout: time.Second}
	assert.NoError(t, valid.Validate())

	for _, mutate := range []func(c *Config){
		func(c *Config) { c.Interface = "" },
		func(c *Config) { c.SnapLen = 0 },
		func(c *Config) { c.BufferSizeMB = 0 },
		func(c *Config) { c.PollTimeout = 0 },
	} {
		c := valid
		mutate(&c)
		assert.Error(t, c.Validate())
	}
}
