package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docweave/docweave/pkg/adapters/memory"
	"github.com/docweave/docweave/pkg/adapters/static"
	"github.com/docweave/docweave/pkg/pipeline"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (flowchart TD) of the document-review workflow.`,
	Run: func(cmd *cobra.Command, args []string) {
		g, err := pipeline.Build(pipeline.Deps{
			Extractor: static.NewExtractor(),
			Evaluator: static.NewEvaluator(),
			Sink:      memory.NewSink(),
		})
		if err != nil {
			fmt.Printf("Error building graph: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(g.Mermaid())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
