/*
Package main is the entry point of the strategist engine.

strategist routes political-analysis queries across upstream AI services
under a monthly budget, with response caching, circuit breaking and live
progress streams.

Usage:

	strategist serve [--env-file .env]
	strategist usage [--entries] [--json]
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashish-admin/stra-tech-sub002/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "strategist",
		Short:         "Multi-model analysis orchestration engine",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewUsageCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
