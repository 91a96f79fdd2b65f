package pipeline

import (
	"time"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/filter"
	"firestige.xyz/nf2cap/internal/reporter"
	"firestige.xyz/nf2cap/internal/source"
)

// Too-short warnings allowed per source address and window when built
// from configuration.
const (
	DefaultWarnLimit  = 5
	DefaultWarnWindow = time.Minute
)

// FromConfig builds a pipeline Config from validated global configuration.
// The filter expression is compiled here.
func FromConfig(gc *config.GlobalConfig, src source.Source, rep reporter.Reporter) (Config, error) {
	f, err := filter.Compile(gc.Decode.Filter)
	if err != nil {
		return Config{}, err
	}
	udp, tcp := gc.Ports()
	return Config{
		AgentID:    gc.Node.ID,
		Source:     src,
		Reporter:   rep,
		UDPPorts:   udp,
		TCPPorts:   tcp,
		Workers:    gc.Decode.Workers,
		Filter:     f,
		SkipEmpty:  gc.Decode.SkipEmpty,
		WarnLimit:  DefaultWarnLimit,
		WarnWindow: DefaultWarnWindow,
	}, nil
}
