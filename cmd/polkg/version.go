package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time
	Version = "0.1.0"
	// Commit the binary was built from (optional ldflag)
	Commit = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if Commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "polkg version %s (%s)\n", Version, Commit)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "polkg version %s\n", Version)
	},
}
