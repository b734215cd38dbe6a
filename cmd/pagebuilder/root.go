package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/pagebuilder/internal/config"
	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagebuilder",
	Short: "PageBuilder keeps interactive pages in sync with their workflow backend",
	Long: `PageBuilder holds the state of interactive pages, tracks which widgets
changed since they were loaded and re-executes the affected nodes on the
workflow backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format, _ = cmd.Flags().GetString("log-format")
		}
		cfg = loaded
		logger = logging.NewWithFormat(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "pagebuilder.toml", "Configuration file (toml, yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
}
