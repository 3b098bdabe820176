// Command geoagg aggregates GeoJSON files locally, without the API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geoagg/internal/pkg/logging"
)

var version = "dev"

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "geoagg",
		Short:   "Merge spatial feature collections into one normalized domain",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup("geoagg-cli", opts.logLevel, opts.logFormat)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(newRunCommand(), newInspectCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
