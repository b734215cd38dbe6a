package main

import (
	"fmt"

	"github.com/aretw0/pagebuilder"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pagebuilder",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pagebuilder version %s\n", pagebuilder.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
