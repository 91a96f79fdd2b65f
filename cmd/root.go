// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/config"
	"firestige.xyz/nf2cap/internal/log"
	"firestige.xyz/nf2cap/internal/reporter"
)

var (
	// Global flags
	configFile string
	logLevel   string

	globalConfig *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nf2cap",
	Short: "nf2cap - NetFPGA event capture decoder",
	Long: `nf2cap decodes the event capture frames a NetFPGA router emits for its
output queues: queue occupancy snapshots followed by a stream of arrive,
depart and drop events stamped with 8ns ticks.

Frames are read from pcap files or captured live from an interface, and
reported to the console, to files or to Kafka.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and NF2CAP_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log.level")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := log.Init(&cfg.Log); err != nil {
		return err
	}
	globalConfig = cfg
	return nil
}

// openReporter builds the configured reporters. Without any, frames are
// printed to out as text.
func openReporter(gc *config.GlobalConfig, out io.Writer) (reporter.Reporter, error) {
	if len(gc.Reporters) == 0 {
		return reporter.NewConsoleReporter(out, nil)
	}
	return reporter.Build(gc.Reporters)
}
