// Package main is the entry point for the jobsweep CLI.
package main

import (
	"os"

	"github.com/jmylchreest/jobsweep/cmd/jobsweep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
