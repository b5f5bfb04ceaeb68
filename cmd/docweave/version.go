package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docweave/docweave"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of docweave",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docweave version %s\n", strings.TrimSpace(docweave.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
