// Package cmd wires seqtrack's subcommands under a spf13/cobra root
// command, the way the teacher's CLI gateway registers each subsystem's
// Cmd onto a shared rootCmd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seqtrack/seqtrack/cmd/seqtrack/internal/capturecmd"
	"github.com/seqtrack/seqtrack/cmd/seqtrack/internal/generatecmd"
	"github.com/seqtrack/seqtrack/cmd/seqtrack/internal/replaycmd"
)

var rootCmd = &cobra.Command{
	Use:           "seqtrack",
	Short:         "Track per-flow sequence gaps across MACsec, IPsec-ESP, and Generic-L3 traffic.",
	Long:          "seqtrack captures or replays packet traffic, reassembles each flow's sequence-number stream, and reports gaps and loss.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(capturecmd.Cmd)
	rootCmd.AddCommand(replaycmd.Cmd)
	rootCmd.AddCommand(generatecmd.Cmd)
}

// Execute runs the root command, printing any error to stderr and exiting
// non-zero on failure.
func Execute() {
	if _, err := rootCmd.ExecuteC(); err != nil {
		fmt.Fprintf(os.Stderr, "seqtrack: %s\n", err)
		os.Exit(1)
	}
}
