// Command taskctl runs maintenance operations against the task store using
// the same configuration as the API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Administer the task sync backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(rolloverCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(statsCmd())
	return rootCmd
}
