package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/report-qa/cli/config"
	"github.com/report-qa/cli/internal/log"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "report-qa",
	Short: "Answer questions about company reports",
	Long: `report-qa ingests company reports (PDF, Markdown, text) into a vector
store and answers questions about them with a chat model, citing the pages
it relied on.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		log.Init(&cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
