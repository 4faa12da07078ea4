package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sessiongate",
		Short: "Session gate for the admin and donor applications",
		Long: `sessiongate guards the admin and donor applications of the platform.

Each application runs as its own process sharing one browser-scoped slot
store, so a sign-in in one application is visible to the other while
application preferences stay private.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		inspectCmd(),
	)
	return rootCmd
}
