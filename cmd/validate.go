package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/filter"
	"firestige.xyz/nf2cap/internal/reporter"
	"firestige.xyz/nf2cap/internal/source"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without reading any traffic",
	Long: `Load the configuration, compile the record filter and the port filter, and
build every configured reporter. Nothing is captured or sent.

Examples:
  nf2cap -c /etc/nf2cap/config.yml validate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(globalConfig, cmd.OutOrStdout())
	},
}

func runValidate(gc *config.GlobalConfig, out io.Writer) error {
	f, err := filter.Compile(gc.Decode.Filter)
	if err != nil {
		return err
	}

	prog, err := source.CompilePortFilter(gc.Capture.UDPPorts, gc.Capture.TCPPorts, uint32(gc.Capture.SnapLen))
	if err != nil {
		return err
	}

	rep, err := reporter.Build(gc.Reporters)
	if err != nil {
		return err
	}
	if err := rep.Close(); err != nil {
		return err
	}

	names := make([]string, 0, len(rep))
	for _, r := range rep {
		names = append(names, r.Name())
	}
	if len(names) == 0 {
		names = append(names, "console (default)")
	}

	fmt.Fprintf(out, "VALID: node %q\n", gc.Node.ID)
	fmt.Fprintf(out, "  ports:     udp=%v tcp=%v (%d BPF instructions)\n", gc.Capture.UDPPorts, gc.Capture.TCPPorts, len(prog))
	fmt.Fprintf(out, "  workers:   %d\n", gc.Decode.Workers)
	fmt.Fprintf(out, "  filter:    %s\n", f)
	fmt.Fprintf(out, "  reporters: %s\n", strings.Join(names, ", "))
	return nil
}
