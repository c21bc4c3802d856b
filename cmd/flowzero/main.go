// Package main is the entry point for the flowzero CLI.
// flowzero orders PlanetScope imagery for river-monitoring AOIs and tracks
// the orders through archival.
package main

import (
	"os"

	"github.com/kdbartholomew/flowzero-orders-cli/cmd/flowzero/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
