package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gpcache",
	Short: "Gaussian Process memoization of expensive functions",
	Long: `gpcache replaces calls to an expensive real-valued function with
Gaussian Process predictions whenever the predictive variance is low enough.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
