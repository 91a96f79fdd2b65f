// Package config loads the nf2cap configuration using viper.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/source/afpacket"
)

// RootKey wraps every setting in the file; env vars use the NF2CAP_ prefix
// (e.g. NF2CAP_LOG_LEVEL).
const RootKey = "nf2cap"

// DefaultPort is the TCP and UDP port event capture traffic is matched on.
const DefaultPort = 975

// GlobalConfig is the complete configuration of one nf2cap run.
type GlobalConfig struct {
	Node      NodeConfig       `mapstructure:"node"`
	Log       log.Config       `mapstructure:"log"`
	Capture   afpacket.Config  `mapstructure:"capture"`
	Decode    DecodeConfig     `mapstructure:"decode"`
	Reporters []ReporterConfig `mapstructure:"reporters"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

// NodeConfig identifies this agent in reported frames.
type NodeConfig struct {
	ID string `mapstructure:"id"` // Empty = hostname
}

// DecodeConfig controls the decode stage of the pipeline.
type DecodeConfig struct {
	Workers int `mapstructure:"workers"` // 0 = GOMAXPROCS
	// Filter is an expression selecting the records that are reported.
	Filter string `mapstructure:"filter"`
	// SkipEmpty drops frames left without records by Filter.
	SkipEmpty bool `mapstructure:"skip_empty"`
}

// ReporterConfig selects one reporter; Options are decoded by the reporter.
type ReporterConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

type configRoot struct {
	NF2Cap GlobalConfig `mapstructure:"nf2cap"`
}

// Load reads the file at path, overlays environment variables and applies
// defaults. An empty path loads defaults and environment only.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", core.ErrConfigInvalid, path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", core.ErrConfigInvalid, err)
	}
	cfg := root.NF2Cap

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	key := func(k string) string { return RootKey + "." + k }

	def := log.DefaultConfig()
	v.SetDefault(key("log.level"), def.Level)
	v.SetDefault(key("log.format"), def.Format)
	v.SetDefault(key("log.pattern"), def.Pattern)
	v.SetDefault(key("log.time"), def.Time)
	v.SetDefault(key("log.output"), def.Output)
	v.SetDefault(key("log.caller"), false)

	v.SetDefault(key("node.id"), "")

	v.SetDefault(key("capture.interface"), "")
	v.SetDefault(key("capture.snap_len"), 65535)
	v.SetDefault(key("capture.buffer_size_mb"), 32)
	v.SetDefault(key("capture.poll_timeout"), "500ms")
	v.SetDefault(key("capture.fanout_id"), 0)
	v.SetDefault(key("capture.udp_ports"), []uint16{DefaultPort})
	v.SetDefault(key("capture.tcp_ports"), []uint16{DefaultPort})

	v.SetDefault(key("decode.workers"), 0)
	v.SetDefault(key("decode.filter"), "")
	v.SetDefault(key("decode.skip_empty"), false)

	v.SetDefault(key("metrics.enabled"), false)
	v.SetDefault(key("metrics.listen"), ":9975")
	v.SetDefault(key("metrics.path"), "/metrics")
}

// ValidateAndApplyDefaults validates settings shared by every command and
// fills runtime defaults. Interface-specific checks are left to the live
// capture.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return invalid("log.level %q must be debug/info/warn/error", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "pattern", "text", "json":
	default:
		return invalid("log.format %q must be pattern/text/json", cfg.Log.Format)
	}

	if cfg.Node.ID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.ID = hostname
	}

	if len(cfg.Capture.UDPPorts) == 0 && len(cfg.Capture.TCPPorts) == 0 {
		return invalid("capture needs at least one of udp_ports or tcp_ports")
	}
	for _, ports := range [][]uint16{cfg.Capture.UDPPorts, cfg.Capture.TCPPorts} {
		for _, p := range ports {
			if p == 0 {
				return invalid("capture port 0 is not allowed")
			}
		}
	}
	if cfg.Capture.SnapLen <= 0 {
		return invalid("capture.snap_len must be positive")
	}

	if cfg.Decode.Workers < 0 {
		return invalid("decode.workers must not be negative")
	}
	if cfg.Decode.Workers == 0 {
		cfg.Decode.Workers = runtime.GOMAXPROCS(0)
	}

	for i, r := range cfg.Reporters {
		if r.Type == "" {
			return invalid("reporters[%d].type is required", i)
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return invalid("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path %q must start with /", cfg.Metrics.Path)
		}
	}
	return nil
}

// Ports returns the configured UDP and TCP port sets.
func (cfg *GlobalConfig) Ports() (udp, tcp map[uint16]struct{}) {
	udp = make(map[uint16]struct{}, len(cfg.Capture.UDPPorts))
	for _, p := range cfg.Capture.UDPPorts {
		udp[p] = struct{}{}
	}
	tcp = make(map[uint16]struct{}, len(cfg.Capture.TCPPorts))
	for _, p := range cfg.Capture.TCPPorts {
		tcp[p] = struct{}{}
	}
	return udp, tcp
}
