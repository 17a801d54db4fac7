package main

import (
	"os"

	"github.com/eventlake-systems/eventlake/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
