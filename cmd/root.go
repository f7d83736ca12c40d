// Package cmd provides the command-line interface of msisim.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "msisim",
	Short: "msisim simulates a two-core MSI snooping cache hierarchy.",
	Long: `msisim simulates two private caches kept coherent by the MSI ` +
		`protocol over a snooping bus, a shared cache and a fixed-latency ` +
		`memory, cycle by cycle.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It runs the exit handlers before returning to the OS.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
