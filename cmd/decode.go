package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/dissect"
	"firestige.xyz/nf2cap/internal/filter"
	"firestige.xyz/nf2cap/internal/reporter"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [FILE]",
	Short: "Decode a single event capture frame",
	Long: `Decode one event capture frame given as raw bytes or, with --hex, as a hex
dump. The frame is read from FILE, or from stdin when FILE is "-" or absent.

Examples:
  nf2cap decode frame.bin
  echo 01020000002a... | nf2cap decode --hex --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return runDecode(cmd.Context(), in, cmd.OutOrStdout(), decodeOpts)
	},
}

type decodeOptions struct {
	hex     bool
	format  string
	verbose bool
	filter  string
}

var decodeOpts decodeOptions

func init() {
	decodeCmd.Flags().BoolVar(&decodeOpts.hex, "hex", false, "input is a hex dump, whitespace ignored")
	decodeCmd.Flags().StringVar(&decodeOpts.format, "format", "text", "output format: text, json or yaml")
	decodeCmd.Flags().BoolVarP(&decodeOpts.verbose, "verbose", "v", false, "text only: print queue depths")
	decodeCmd.Flags().StringVar(&decodeOpts.filter, "filter", "", "record filter expression")
}

func runDecode(ctx context.Context, in io.Reader, out io.Writer, opts decodeOptions) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if opts.hex {
		data, err = hex.DecodeString(string(bytes.Join(bytes.Fields(data), nil)))
		if err != nil {
			return fmt.Errorf("invalid hex input: %w", err)
		}
	}

	f, err := filter.Compile(opts.filter)
	if err != nil {
		return err
	}
	rep, err := reporter.NewConsoleReporter(out, map[string]interface{}{
		"format":  opts.format,
		"verbose": opts.verbose,
	})
	if err != nil {
		return err
	}

	pkt := gopacket.NewPacket(data, dissect.LayerTypeEventCapture, gopacket.Default)
	if el := pkt.ErrorLayer(); el != nil {
		return fmt.Errorf("decode %d bytes: %w", len(data), el.Error())
	}
	frame := &pkt.Layer(dissect.LayerTypeEventCapture).(*dissect.EventCapture).Frame

	filtered, err := f.Apply(frame)
	if err != nil {
		return err
	}
	return rep.Report(ctx, &core.OutputPacket{
		Labels:      dissect.Labels(frame),
		PayloadType: reporter.PayloadTypeNF2,
		Payload:     filtered,
		RawPayload:  data,
	})
}
