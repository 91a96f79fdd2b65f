package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/pipeline"
	"firestige.xyz/nf2cap/internal/source"
	"firestige.xyz/nf2cap/internal/source/pcapfile"
)

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Decode event capture frames from a pcap or pcapng file",
	Long: `Read a pcap or pcapng file ("-" for stdin) and report every event capture
frame carried on the configured UDP and TCP ports.

Examples:
  nf2cap read capture.pcap
  nf2cap read --any-port --filter 'type == "drop"' capture.pcapng
  tcpdump -w - -i eth1 udp port 975 | nf2cap read -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runRead(ctx, globalConfig, args[0], readOpts, cmd.OutOrStdout())
	},
}

type readOptions struct {
	anyPort   bool
	keepRaw   bool
	filter    string
	skipEmpty bool
}

var readOpts readOptions

func init() {
	readCmd.Flags().BoolVar(&readOpts.anyPort, "any-port", false,
		"decode every UDP and TCP payload regardless of port")
	readCmd.Flags().BoolVar(&readOpts.keepRaw, "keep-raw", false,
		"attach the undecoded payload to reported frames")
	readCmd.Flags().StringVar(&readOpts.filter, "filter", "",
		"record filter expression, overrides decode.filter")
	readCmd.Flags().BoolVar(&readOpts.skipEmpty, "skip-empty", false,
		"drop frames left without records by the filter")
}

func runRead(ctx context.Context, gc *config.GlobalConfig, path string, opts readOptions, out io.Writer) error {
	cfg := *gc
	if opts.filter != "" {
		cfg.Decode.Filter = opts.filter
	}
	cfg.Decode.SkipEmpty = cfg.Decode.SkipEmpty || opts.skipEmpty

	src, err := pcapfile.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	st, err := runPipeline(ctx, &cfg, src, out, func(pc *pipeline.Config) {
		pc.AnyPort = opts.anyPort
		pc.KeepRaw = opts.keepRaw
	}, nil)
	if err != nil {
		return err
	}
	log.GetLogger().Infof("read %s: %d packets, %d frames, %d reported", path, st.Packets, st.Frames, st.Reported)
	return nil
}

// runPipeline runs src through a pipeline built from gc and reports to the
// configured reporters. adjust, when set, edits the pipeline configuration
// before the run; watch, when set, runs alongside it until the run ends.
func runPipeline(ctx context.Context, gc *config.GlobalConfig, src source.Source, out io.Writer,
	adjust func(*pipeline.Config), watch func(context.Context, *pipeline.Pipeline)) (pipeline.Stats, error) {
	rep, err := openReporter(gc, out)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer func() {
		if err := rep.Close(); err != nil {
			log.GetLogger().WithError(err).Warn("reporter close failed")
		}
	}()

	pc, err := pipeline.FromConfig(gc, src, rep)
	if err != nil {
		return pipeline.Stats{}, err
	}
	if adjust != nil {
		adjust(&pc)
	}
	p, err := pipeline.New(pc)
	if err != nil {
		return pipeline.Stats{}, err
	}
	if watch != nil {
		wctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			watch(wctx, p)
		}()
		defer func() {
			cancel()
			<-done
		}()
	}
	if err := p.Run(ctx); err != nil {
		return p.Stats(), fmt.Errorf("run: %w", err)
	}
	return p.Stats(), nil
}
