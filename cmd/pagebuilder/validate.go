package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <page-file>...",
	Short: "Check page files against the page schema",
	Long:  `Reads every page file (JSON or YAML) and reports the schema violations it contains.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			req, err := file.ReadPageFile(path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d nodes)\n", path, len(req.Page.NodeIDs()))
		}
		if failed > 0 {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
