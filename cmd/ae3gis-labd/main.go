// Command ae3gis-labd is the orchestrator daemon CLI: it compiles
// topologies, drives their deployment lifecycle, and serves the live
// streams (status, PTY exec, reverse proxy) over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ae3gis-labd/internal/config"
	"ae3gis-labd/internal/logging"
)

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "ae3gis-labd",
		Short:         "Classroom network-lab orchestrator",
		Version:       "0.1.0",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	root.AddCommand(compileCmd(&cfg))
	root.AddCommand(deployCmd(&cfg))
	root.AddCommand(destroyCmd(&cfg))
	root.AddCommand(inspectCmd(&cfg))
	root.AddCommand(serveCmd(&cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
