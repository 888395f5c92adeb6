package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every stored embedding",
	Long:  `Clears the vector store. The table or collection itself is kept.`,
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("refusing to clear the vector store without --yes")
	}

	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.pipeline.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Println("Vector store cleared.")
	return nil
}
