package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "netgrid",
		Short: "Netgrid inventory engine",
		Long: `Netgrid is a metadata-driven inventory engine. It stores a class
hierarchy, the objects instantiated from it, and their containment and
relationship graph, and serves them over a JSON API.`,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initdbCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
