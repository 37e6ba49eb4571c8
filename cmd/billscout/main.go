// Package main is the entry point for the billscout CLI.
package main

import (
	"os"

	"github.com/jmylchreest/billscout/cmd/billscout/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
