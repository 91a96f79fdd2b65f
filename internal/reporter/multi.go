package reporter

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/core"
)

// Multi fans every call out to all of its reporters. A failing reporter
// does not stop delivery to the others; errors are combined.
type Multi []Reporter

var _ Reporter = Multi(nil)

func (m Multi) Name() string { return "multi" }

func (m Multi) Report(ctx context.Context, pkt *core.OutputPacket) error {
	var err error
	for _, r := range m {
		if e := r.Report(ctx, pkt); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.Name(), e))
		}
	}
	return err
}

func (m Multi) Flush(ctx context.Context) error {
	var err error
	for _, r := range m {
		if e := r.Flush(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.Name(), e))
		}
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, r := range m {
		if e := r.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.Name(), e))
		}
	}
	return err
}

// Build constructs one reporter per configuration entry. Reporters built
// before a failure are closed.
func Build(cfgs []config.ReporterConfig) (Multi, error) {
	m := make(Multi, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := New(c.Type, c.Options)
		if err != nil {
			return nil, multierr.Append(err, m.Close())
		}
		m = append(m, r)
	}
	return m, nil
}
