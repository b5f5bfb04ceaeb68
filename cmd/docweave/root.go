package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docweave",
	Short: "Docweave is a resumable human-in-the-loop document workflow engine",
	Long: `Docweave runs documents through an extraction and compliance pipeline
and pauses for human approval when a document needs review. Sessions survive
the pause: answers arrive out of band and the run picks up where it stopped.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
