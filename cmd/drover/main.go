package main

import (
	"fmt"
	"os"

	"github.com/drover-sh/drover/internal/cli"
	"github.com/drover-sh/drover/internal/runner"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(runner.ExitCode(err))
	}
}
