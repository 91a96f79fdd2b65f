package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/nf2cap/internal/dissect"
	"firestige.xyz/nf2cap/internal/filter"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of a decoded frame and the names usable in filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFields(cmd.OutOrStdout())
	},
}

func runFields(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tNAME\tTYPE\tMASK\tDESCRIPTION")
	for _, f := range dissect.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Abbrev, f.Name, f.Kind, f.MaskString(), f.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILTER NAME\tTYPE")
	for _, v := range filter.Variables() {
		fmt.Fprintf(tw, "%s\t%s\n", v.Name, v.Type)
	}
	return tw.Flush()
}
