package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docweave/docweave/internal/cli"
	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the workflow engine as an MCP server on stdio, so AI agents can
start runs, answer approvals and inspect sessions as tools.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		// Logs must not corrupt JSON-RPC on stdout.
		log.SetOutput(os.Stderr)
		logger := logging.New(slog.LevelInfo)

		wf, err := cli.NewWorkflow(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing workflow: %v\n", err)
			os.Exit(1)
		}

		srv := mcp.NewServer(wf.Bridge())
		logger.Info("starting MCP server (stdio)")
		if err := srv.ServeStdio(); err != nil {
			logger.Error("MCP server execution failed", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
