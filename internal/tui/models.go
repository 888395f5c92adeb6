package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/report-qa/cli/internal/llm"
)

const listTimeout = 10 * time.Second

// ModelLister lists locally available chat models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// ModelsView lets the user switch the chat model. Embedding models are
// hidden since they cannot answer questions.
type ModelsView struct {
	lister  ModelLister
	models  []llm.ModelInfo
	cursor  int
	current string
	loading bool
	err     error
}

// NewModelsView creates a picker with current preselected once loaded.
func NewModelsView(lister ModelLister, current string) *ModelsView {
	return &ModelsView{lister: lister, current: current}
}

// Init starts loading the model list.
func (mv *ModelsView) Init() tea.Cmd {
	mv.loading = true
	mv.err = nil
	return mv.load
}

// Update implements tea.Model.
func (mv *ModelsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return mv, mv.handleKey(msg.String())
	case modelsLoadedMsg:
		mv.loading = false
		mv.models = chatModels(msg.models)
		mv.cursor = 0
		for i, m := range mv.models {
			if m.Name == mv.current {
				mv.cursor = i
			}
		}
	case modelSelectedMsg:
		mv.current = msg.model
	case errorMsg:
		mv.loading = false
		mv.err = msg.err
	}
	return mv, nil
}

func (mv *ModelsView) handleKey(key string) tea.Cmd {
	switch key {
	case "down", "j":
		mv.cursor = min(mv.cursor+1, max(len(mv.models)-1, 0))
	case "up", "k":
		mv.cursor = max(mv.cursor-1, 0)
	case "enter", " ":
		if mv.cursor < len(mv.models) {
			name := mv.models[mv.cursor].Name
			return func() tea.Msg { return modelSelectedMsg{model: name} }
		}
	case "r":
		return mv.Init()
	}
	return nil
}

// View implements tea.Model.
func (mv *ModelsView) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat model"))
	b.WriteString("\n\n")

	switch {
	case mv.loading:
		b.WriteString("Loading models...\n")
		return b.String()
	case mv.err != nil:
		b.WriteString(errorStyle.Render("Error: " + mv.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(accentStyle.Render("In use: " + mv.current))
	b.WriteString("\n\n")

	if len(mv.models) == 0 && mv.err == nil {
		b.WriteString("No chat models installed. Pull one with `ollama pull`.\n")
	}
	for i, m := range mv.models {
		marker := "  "
		style := lipgloss.NewStyle()
		if i == mv.cursor {
			marker = "> "
			style = headerStyle
		}
		if m.Name == mv.current {
			style = style.Foreground(lipgloss.Color("39"))
		}
		line := fmt.Sprintf("%s%-32s %9s  %s", marker, m.Name, humanSize(m.Size), modifiedDate(m.ModifiedAt))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("up/down: move | enter: use | r: reload | esc: back"))
	return b.String()
}

func (mv *ModelsView) load() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()
	models, err := mv.lister.ListModels(ctx)
	if err != nil {
		return errorMsg{err: err}
	}
	return modelsLoadedMsg{models: models}
}

func chatModels(all []llm.ModelInfo) []llm.ModelInfo {
	out := make([]llm.ModelInfo, 0, len(all))
	for _, m := range all {
		if !llm.IsEmbeddingModel(m.Name) {
			out = append(out, m)
		}
	}
	return out
}

func humanSize(bytes int64) string {
	const gb = 1 << 30
	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	}
	return fmt.Sprintf("%.0f MB", float64(bytes)/(1<<20))
}

// modifiedDate shortens Ollama's RFC 3339 timestamp to a date.
func modifiedDate(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

type modelsLoadedMsg struct {
	models []llm.ModelInfo
}

type modelSelectedMsg struct {
	model string
}

type errorMsg struct {
	err error
}
