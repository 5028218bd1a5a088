// Package cmd defines the CLI commands for the paper-archiver executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper-archiver",
		Short: "Archives publication PDFs to a remote object store.",
		Long: `paper-archiver crawls a paged publication archive, locates the
downloadable PDF for each paper, and re-hosts the files in a remote object
store, deleting local copies once they are persisted remotely.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
