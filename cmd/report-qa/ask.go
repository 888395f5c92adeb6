package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/report-qa/cli/internal/domain"
)

var (
	askKind string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question",
	Long: `Answers a single question against the ingested reports. The company is
read from the first quoted name in the question, for example:

  report-qa ask --kind number 'What was the total revenue of "Acme Corp" in 2022?'

Kinds: string, number, boolean, names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askKind, "kind", "k", "string", "expected answer kind")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseKind(askKind)
	if err != nil {
		return err
	}

	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	result := app.pipeline.Answer(cmd.Context(), strings.Join(args, " "), kind, "")

	if askJSON {
		data, err := json.MarshalIndent(result.Answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printAnswer(cmd, result.Answer)
	if !result.OK() {
		cmd.PrintErrf("\nwarning: %v\n", result.Failure)
	}
	return nil
}

func printAnswer(cmd *cobra.Command, a domain.Answer) {
	cmd.Printf("Answer: %v\n", a.FinalAnswer)
	if a.ReasoningSummary != "" {
		cmd.Printf("Reasoning: %s\n", a.ReasoningSummary)
	}
	if len(a.RelevantPages) > 0 {
		cmd.Printf("Pages: %v\n", a.RelevantPages)
	}
	for _, ref := range a.References {
		cmd.Printf("  - %s page %d\n", ref.PDFSHA1, ref.PageIndex)
	}
}
