package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/report-qa/cli/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the interactive console",
	Long: `Launch the interactive console for multi-turn questions.

Commands inside the console:
  /kind <kind>              - Set the expected answer kind
  /new                      - Start a new session
  /clear                    - Clear the session history
  /ingest <path> [company]  - Ingest a file or directory
  /models                   - Pick an Ollama chat model
  /verbose                  - Toggle step-by-step analysis
  Ctrl+C                    - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var lister tui.ModelLister
	selector, setModel := app.modelLister()
	if selector != nil {
		lister = selector
	}

	if err := tui.Run(tui.NewApp(app.pipeline, app.chatModel, lister, setModel)); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}
