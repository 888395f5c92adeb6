package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/report-qa/cli/internal/documents"
	"github.com/report-qa/cli/internal/domain"
)

// IngestResult describes one ingested document.
type IngestResult struct {
	File        string `json:"file"`
	SHA1        string `json:"sha1"`
	CompanyName string `json:"company_name"`
	Chunks      int    `json:"chunks"`
	Skipped     bool   `json:"skipped"`
}

// IngestFailure records a file that could not be ingested.
type IngestFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IngestReport summarizes a directory ingestion.
type IngestReport struct {
	Results  []IngestResult  `json:"results"`
	Failures []IngestFailure `json:"failures"`
}

// Ingested counts documents that were newly stored.
func (r *IngestReport) Ingested() int {
	n := 0
	for _, res := range r.Results {
		if !res.Skipped {
			n++
		}
	}
	return n
}

// Skipped counts documents that were already stored.
func (r *IngestReport) Skipped() int {
	return len(r.Results) - r.Ingested()
}

// Ingest chunks, embeds and stores doc. A document whose sha1 is already in
// the store is skipped.
func (p *Pipeline) Ingest(ctx context.Context, doc *domain.Document) (IngestResult, error) {
	result := IngestResult{
		File:        doc.Meta.FileName,
		SHA1:        doc.Meta.SHA1,
		CompanyName: doc.Meta.CompanyName,
	}

	exists, err := p.store.Contains(ctx, doc.Meta.SHA1)
	if err != nil {
		return result, fmt.Errorf("failed to check existing document: %w", err)
	}
	if exists {
		p.logger.Info("document already ingested", "file", doc.Meta.FileName, "sha1", doc.Meta.SHA1)
		result.Skipped = true
		return result, nil
	}

	chunked := p.split(doc)
	if len(chunked.Chunks) == 0 {
		p.logger.Warn("document has no text", "file", doc.Meta.FileName)
		return result, nil
	}

	texts := make([]string, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return result, fmt.Errorf("embedded %d of %d chunks", len(vectors), len(texts))
	}

	if _, err := p.store.AddAll(ctx, vectors, domain.SegmentsFor(chunked)); err != nil {
		return result, fmt.Errorf("failed to store chunks: %w", err)
	}

	result.Chunks = len(chunked.Chunks)
	p.logger.Info("document ingested",
		"file", doc.Meta.FileName,
		"company", doc.Meta.CompanyName,
		"pages", len(doc.Pages),
		"chunks", result.Chunks,
	)
	return result, nil
}

// IngestFile parses and ingests the file at path. An empty companyName is
// derived from the file name.
func (p *Pipeline) IngestFile(ctx context.Context, path, companyName string) (IngestResult, error) {
	parser, err := documents.ParserFor(path)
	if err != nil {
		return IngestResult{File: filepath.Base(path)}, err
	}
	doc, err := parser.Parse(path, companyName)
	if err != nil {
		return IngestResult{File: filepath.Base(path)}, fmt.Errorf("failed to parse document: %w", err)
	}
	return p.Ingest(ctx, doc)
}

// IngestDirectory ingests every supported file under dir with bounded
// parallelism. Per-file failures are collected in the report; only walking
// errors and cancellation fail the call.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if documents.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	p.logger.Info("ingesting directory", "dir", dir, "files", len(paths), "workers", p.workers)

	results := make([]IngestResult, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], failures[i] = p.IngestFile(gctx, path, "")
			if failures[i] != nil {
				p.logger.Error("failed to ingest file", "path", path, "error", failures[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &IngestReport{Results: []IngestResult{}, Failures: []IngestFailure{}}
	for i, path := range paths {
		if failures[i] != nil {
			report.Failures = append(report.Failures, IngestFailure{Path: path, Error: failures[i].Error()})
			continue
		}
		report.Results = append(report.Results, results[i])
	}

	p.logger.Info("directory ingested",
		"dir", dir,
		"ingested", report.Ingested(),
		"skipped", report.Skipped(),
		"failed", len(report.Failures),
	)
	return report, nil
}

// split chunks doc, using line windows for markdown when configured.
func (p *Pipeline) split(doc *domain.Document) *domain.Document {
	if p.markdownLines > 0 && strings.EqualFold(filepath.Ext(doc.Meta.FileName), ".md") {
		texts := make([]string, len(doc.Pages))
		for i, page := range doc.Pages {
			texts[i] = page.Text
		}
		return &domain.Document{
			Meta:   doc.Meta,
			Pages:  doc.Pages,
			Chunks: p.chunker.SplitMarkdown(strings.Join(texts, "\n"), p.markdownLines, p.markdownOverlapLines),
		}
	}
	return p.chunker.Split(doc)
}
