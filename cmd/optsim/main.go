package main

import (
	"os"

	"github.com/quantfork/optsim/cmd/optsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
