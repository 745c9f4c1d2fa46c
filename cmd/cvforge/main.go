package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "cvforge",
		Short:   "cvforge — token-metered CV generation backend",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newGrantCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
