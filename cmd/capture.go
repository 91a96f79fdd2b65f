package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/metrics"
	"firestige.xyz/nf2cap/internal/pipeline"
	"firestige.xyz/nf2cap/internal/source/afpacket"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and decode event capture frames from a live interface",
	Long: `Capture traffic on an interface through an AF_PACKET ring, decode the
event capture frames on the configured ports and report them until
interrupted. Requires CAP_NET_RAW.

Examples:
  nf2cap capture -i eth1
  nf2cap -c /etc/nf2cap/config.yml capture --stats-interval 30s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCapture(ctx, globalConfig, captureOpts, cmd.OutOrStdout())
	},
}

type captureOptions struct {
	iface         string
	statsInterval time.Duration
}

var captureOpts captureOptions

func init() {
	captureCmd.Flags().StringVarP(&captureOpts.iface, "interface", "i", "",
		"interface to capture on, overrides capture.interface")
	captureCmd.Flags().DurationVar(&captureOpts.statsInterval, "stats-interval", 10*time.Second,
		"log pipeline counters at this interval, 0 disables")
}

func runCapture(ctx context.Context, gc *config.GlobalConfig, opts captureOptions, out io.Writer) error {
	cfg := *gc
	if opts.iface != "" {
		cfg.Capture.Interface = opts.iface
	}

	src, err := afpacket.Open(cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	var watch func(context.Context, *pipeline.Pipeline)
	if opts.statsInterval > 0 {
		watch = func(ctx context.Context, p *pipeline.Pipeline) {
			logStats(ctx, p, opts.statsInterval)
		}
	}

	st, err := runPipeline(ctx, &cfg, src, out, nil, watch)
	if err != nil {
		return err
	}
	log.GetLogger().Infof("capture on %s stopped: %d packets, %d frames, %d reported",
		cfg.Capture.Interface, st.Packets, st.Frames, st.Reported)
	return nil
}

func logStats(ctx context.Context, p *pipeline.Pipeline, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := p.Stats()
			log.GetLogger().WithFields(map[string]interface{}{
				"packets":       st.Packets,
				"frames":        st.Frames,
				"reported":      st.Reported,
				"too_short":     st.TooShort,
				"skipped":       st.Skipped,
				"report_errors": st.ReportErrors,
			}).Info("pipeline stats")
		}
	}
}
