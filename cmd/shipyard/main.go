package main

import (
	"os"

	"github.com/portmantle/shipyard/cmd/shipyard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
