// Command perfkit measures workloads against performance requirements.
package main

import (
	"os"

	"github.com/wesleyorama2/perfkit/internal/cli"
)

// exitFailure is returned when a test was aborted or missed its requirement.
const exitFailure = 1

func run() int {
	if err := cli.Execute(); err != nil {
		return exitFailure
	}
	return 0
}

func main() {
	os.Exit(run())
}
