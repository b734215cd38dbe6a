package main

import (
	"fmt"

	"github.com/aretw0/pagebuilder/internal/presentation/graph"
	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <page-file>",
	Short: "Export the page graph visualization",
	Long:  `Reads a page file and outputs a Mermaid diagram (graph TD) of its nodes and selection translators.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := file.ReadPageFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(req.Page, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
