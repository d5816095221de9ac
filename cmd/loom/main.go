package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom - prompt templating and batch LLM execution",
	Long: `Loom binds datasets to prompt templates, renders them per record,
invokes a language model, and parses the responses.

Available commands:
  serve  - Start the Loom HTTP server

Examples:
  loom serve                     # Start with defaults (port 8088)
  loom serve --config loom.toml  # Start with an explicit config file`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
