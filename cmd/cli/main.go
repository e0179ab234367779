// Package main is the entry point for the gridstudy CLI.
// The CLI is the developer terminal tool for interacting with the study API.
package main

import (
	"os"

	"gridstudy/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
