package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docweave/docweave/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <document-uri>",
	Short: "Process a document interactively",
	Long: `Runs a document through the review workflow. When the pipeline needs a
human verdict the command prompts on the terminal; with --auto-approve every
request is answered positively without prompting.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		autoComment, _ := cmd.Flags().GetString("comment")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := cli.RunSession(ctx, cli.RunOptions{
			DocumentURI: args[0],
			ConfigPath:  configPath,
			Debug:       debug,
			AutoApprove: autoApprove,
			AutoComment: autoComment,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("auto-approve", false, "Answer every approval request positively")
	runCmd.Flags().String("comment", "", "Comment attached to auto-approved decisions")
}
