package main

import (
	"fmt"
	"os"

	"ledger/internal/cli"
	"ledger/internal/core"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(newApp(os.Stdout, core.SystemClock{})).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
