package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ingestCompany string
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a single report",
	Long: `Parses, chunks, embeds and stores one report. The company name is taken
from --company or derived from the file name. Reports already stored, by
content hash, are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestDirCmd = &cobra.Command{
	Use:   "ingest-dir [directory]",
	Short: "Ingest every supported report in a directory",
	Long: `Walks a directory tree and ingests every PDF, Markdown and text file in
parallel. Hidden directories are skipped. Files that fail are reported and
do not stop the rest. Defaults to ingest.documents_dir.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestDir,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCompany, "company", "", "company name (derived from the file name when empty)")
	ingestDirCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(ingestDirCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.pipeline.IngestFile(cmd.Context(), args[0], ingestCompany)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if res.Skipped {
		cmd.Printf("%s already ingested (sha1 %s)\n", res.File, res.SHA1)
		return nil
	}
	cmd.Printf("Ingested %s for %s: %d chunks (sha1 %s)\n", res.File, res.CompanyName, res.Chunks, res.SHA1)
	return nil
}

func runIngestDir(cmd *cobra.Command, args []string) error {
	dir := cfg.Ingest.DocumentsDir
	if len(args) > 0 {
		dir = args[0]
	}

	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.pipeline.IngestDirectory(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for _, r := range report.Results {
		status := fmt.Sprintf("%d chunks", r.Chunks)
		if r.Skipped {
			status = "skipped"
		}
		cmd.Printf("  %-40s %-20s %s\n", r.File, r.CompanyName, status)
	}
	for _, f := range report.Failures {
		cmd.Printf("  %-40s failed: %s\n", f.Path, f.Error)
	}
	cmd.Printf("\n%d ingested, %d skipped, %d failed\n", report.Ingested(), report.Skipped(), len(report.Failures))
	return nil
}
