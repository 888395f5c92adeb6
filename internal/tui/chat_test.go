package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/llm"
	"github.com/report-qa/cli/internal/pipeline"
	"github.com/report-qa/cli/internal/rag"
)

type fakeBackend struct {
	sessions int
	cleared  []string
	asked    []domain.Kind
	ingested []string
	result   rag.Result
}

func (f *fakeBackend) Answer(_ context.Context, _ string, kind domain.Kind, _ string) rag.Result {
	f.asked = append(f.asked, kind)
	return f.result
}

func (f *fakeBackend) NewSession() string {
	f.sessions++
	return "session-" + string(rune('0'+f.sessions))
}

func (f *fakeBackend) ClearSession(id string) { f.cleared = append(f.cleared, id) }

func (f *fakeBackend) IngestFile(_ context.Context, path, company string) (pipeline.IngestResult, error) {
	f.ingested = append(f.ingested, path)
	return pipeline.IngestResult{File: filepath.Base(path), CompanyName: company, Chunks: 4}, nil
}

func (f *fakeBackend) IngestDirectory(_ context.Context, dir string) (*pipeline.IngestReport, error) {
	f.ingested = append(f.ingested, dir)
	return &pipeline.IngestReport{Results: []pipeline.IngestResult{{Chunks: 1}}}, nil
}

func typeLine(t *testing.T, cv *ChatView, line string) tea.Cmd {
	t.Helper()
	cv.input.SetValue(line)
	_, cmd := cv.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func newChat(backend *fakeBackend) *ChatView {
	cv := NewChatView(backend, "qwen2.5")
	cv.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return cv
}

func TestChatAsksWithSelectedKind(t *testing.T) {
	backend := &fakeBackend{result: rag.Result{Answer: domain.Answer{
		ReasoningSummary: "Read from **page 12**.",
		RelevantPages:    []int{12},
		FinalAnswer:      1234500.0,
		References:       []domain.Reference{{PDFSHA1: "0123456789abcdef", PageIndex: 11}},
	}}}
	cv := newChat(backend)

	assert.Nil(t, typeLine(t, cv, "/kind number"))
	assert.Equal(t, domain.KindNumber, cv.kind)

	cmd := typeLine(t, cv, `"ACME" revenue?`)
	require.NotNil(t, cmd)
	assert.True(t, cv.loading)

	cv.Update(cmd())
	assert.False(t, cv.loading)
	assert.Equal(t, []domain.Kind{domain.KindNumber}, backend.asked)

	out := cv.renderEntries()
	assert.Contains(t, out, "1234500")
	assert.Contains(t, out, "pages 12")
	assert.Contains(t, out, "01234567#11")
}

func TestChatRejectsUnknownKind(t *testing.T) {
	cv := newChat(&fakeBackend{})
	typeLine(t, cv, "/kind date")
	assert.Equal(t, domain.KindString, cv.kind)
	assert.Contains(t, cv.status, "unknown question kind")
}

func TestChatShowsFailures(t *testing.T) {
	backend := &fakeBackend{result: rag.Result{
		Answer:  domain.Unavailable("company name not found in question", "processing failed"),
		Failure: &rag.Failure{Stage: rag.StageExtractScope, Err: domain.ErrScopeNotFound},
	}}
	cv := newChat(backend)

	cmd := typeLine(t, cv, "revenue?")
	cv.Update(cmd())
	assert.Equal(t, "Failed at extract_scope", cv.status)
	assert.Contains(t, cv.renderEntries(), "company name not found")
}

func TestChatSessionCommands(t *testing.T) {
	backend := &fakeBackend{}
	cv := newChat(backend)
	first := cv.sessionID

	typeLine(t, cv, "/clear")
	assert.Equal(t, []string{first}, backend.cleared)

	typeLine(t, cv, "/new")
	assert.NotEqual(t, first, cv.sessionID)
	assert.Equal(t, 2, backend.sessions)
}

func TestChatIngest(t *testing.T) {
	backend := &fakeBackend{}
	cv := newChat(backend)

	dir := t.TempDir()
	file := filepath.Join(dir, "acme.pdf")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	cmd := typeLine(t, cv, "/ingest "+file+" ACME Corp")
	require.NotNil(t, cmd)
	cv.Update(cmd())
	assert.Contains(t, cv.renderEntries(), "Ingested acme.pdf (ACME Corp): 4 chunks")

	cmd = typeLine(t, cv, "/ingest "+dir)
	cv.Update(cmd())
	assert.Contains(t, cv.renderEntries(), "Ingested 1, skipped 0, failed 0")
	assert.Equal(t, []string{file, dir}, backend.ingested)

	cmd = typeLine(t, cv, "/ingest "+filepath.Join(dir, "missing.pdf"))
	cv.Update(cmd())
	assert.Equal(t, "Ingest failed", cv.status)
}

type staticLister struct {
	models []llm.ModelInfo
	err    error
}

func (s staticLister) ListModels(context.Context) ([]llm.ModelInfo, error) {
	return s.models, s.err
}

func TestAppModelSelection(t *testing.T) {
	var chosen string
	lister := staticLister{models: []llm.ModelInfo{{Name: "llama3.2"}, {Name: "qwen2.5"}}}
	app := NewApp(&fakeBackend{}, "llama3.2", lister, func(m string) { chosen = m })
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	_, cmd := app.Update(showModelsMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, screenModels, app.screen)

	app.Update(cmd())
	assert.Contains(t, app.View(), "qwen2.5")

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, "qwen2.5", chosen)
	assert.Equal(t, "qwen2.5", app.chat.model)
	assert.Equal(t, screenChat, app.screen)
}

func TestAppWithoutModelLister(t *testing.T) {
	app := NewApp(&fakeBackend{}, "gpt-4o-mini", nil, nil)
	app.Update(showModelsMsg{})
	assert.Equal(t, screenChat, app.screen)
	assert.Contains(t, app.chat.status, "ollama")
}

func TestAppModelListError(t *testing.T) {
	app := NewApp(&fakeBackend{}, "x", staticLister{err: errors.New("connection refused")}, nil)
	_, cmd := app.Update(showModelsMsg{})
	app.Update(cmd())
	assert.Contains(t, app.View(), "connection refused")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenChat, app.screen)
}

func TestProcessBold(t *testing.T) {
	assert.Equal(t, "plain", processBold("plain"))
	assert.Contains(t, processBold("a **b** c"), "b")
	assert.NotContains(t, processBold("a **b** c"), "**")
}

func TestFormatFinalAnswer(t *testing.T) {
	assert.Equal(t, "58.3", formatFinalAnswer(58.3))
	assert.Equal(t, "-2124837", formatFinalAnswer(-2124837.0))
	assert.Equal(t, "true", formatFinalAnswer(true))
	assert.Equal(t, "Alice, Bob", formatFinalAnswer([]string{"Alice", "Bob"}))
	assert.Equal(t, "(none)", formatFinalAnswer([]string{}))
	assert.Equal(t, "N/A", formatFinalAnswer("N/A"))
}

func TestModelsViewHidesEmbeddingModels(t *testing.T) {
	mv := NewModelsView(staticLister{}, "qwen2.5")
	mv.Update(modelsLoadedMsg{models: []llm.ModelInfo{
		{Name: "nomic-embed-text:latest", Size: 300 << 20},
		{Name: "llama3.2", Size: 2 << 30, ModifiedAt: "2024-09-25T10:00:00.123456789+02:00"},
		{Name: "qwen2.5", Size: 4 << 30},
	}})

	require.Len(t, mv.models, 2)
	assert.Equal(t, 1, mv.cursor, "cursor starts on the model in use")
	view := mv.View()
	assert.NotContains(t, view, "nomic-embed-text")
	assert.Contains(t, view, "2.0 GB")
	assert.Contains(t, view, "2024-09-25")

	mv.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, mv.cursor, "cursor stops at the last model")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "300 MB", humanSize(300<<20))
	assert.Equal(t, "1.5 GB", humanSize(3<<29))
}
