// Package main is the entry point for the nf2cap event capture decoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/nf2cap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
