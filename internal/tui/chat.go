package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/pipeline"
	"github.com/report-qa/cli/internal/rag"
)

const requestTimeout = 5 * time.Minute

const helpText = `Quote the company in your question, e.g. What was "ACME Corp" revenue in 2023?
/kind string|number|boolean|names   set the expected answer type
/new                                start a new session
/clear                              clear this session's history
/ingest <path> [company]            ingest a file or directory
/verbose                            toggle step-by-step analysis
/models                             choose the chat model
/help                               show this help`

// Backend is what the TUI needs from the pipeline.
type Backend interface {
	Answer(ctx context.Context, text string, kind domain.Kind, sessionID string) rag.Result
	NewSession() string
	ClearSession(id string)
	IngestFile(ctx context.Context, path, companyName string) (pipeline.IngestResult, error)
	IngestDirectory(ctx context.Context, dir string) (*pipeline.IngestReport, error)
}

// entry is one rendered item of the conversation.
type entry struct {
	role    domain.Role
	content string
	answer  *domain.Answer
	failed  bool
}

// ChatView is the question and answer console.
type ChatView struct {
	backend   Backend
	sessionID string
	kind      domain.Kind
	model     string

	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	loading  bool
	verbose  bool
	status   string
	width    int
	ready    bool
}

// NewChatView creates a chat view with a fresh session.
func NewChatView(backend Backend, model string) *ChatView {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = `Ask about a report, e.g. "ACME Corp" total revenue? (/help)`
	ti.CharLimit = 0
	ti.Focus()

	return &ChatView{
		backend:   backend,
		sessionID: backend.NewSession(),
		kind:      domain.KindString,
		model:     model,
		input:     ti,
		viewport:  viewport.New(0, 0),
		status:    "Ready",
		width:     80,
	}
}

// answerMsg carries a finished question.
type answerMsg struct {
	result rag.Result
}

// ingestMsg carries the outcome of an /ingest command.
type ingestMsg struct {
	summary string
	err     error
}

// showModelsMsg asks the app to open the model picker.
type showModelsMsg struct{}

// Init starts the cursor blinking.
func (cv *ChatView) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input and async results.
func (cv *ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cv.resize(msg.Width, msg.Height)
		return cv, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			return cv, cv.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			cv.viewport, cmd = cv.viewport.Update(msg)
			return cv, cmd
		}

	case answerMsg:
		cv.loading = false
		answer := msg.result.Answer
		cv.entries = append(cv.entries, entry{role: domain.RoleAssistant, answer: &answer, failed: !msg.result.OK()})
		if msg.result.OK() {
			cv.status = "Answered"
		} else {
			cv.status = fmt.Sprintf("Failed at %s", msg.result.Failure.Stage)
		}
		cv.refresh()
		return cv, nil

	case ingestMsg:
		cv.loading = false
		if msg.err != nil {
			cv.entries = append(cv.entries, entry{role: domain.RoleSystem, content: "Ingest failed: " + msg.err.Error(), failed: true})
			cv.status = "Ingest failed"
		} else {
			cv.entries = append(cv.entries, entry{role: domain.RoleSystem, content: msg.summary})
			cv.status = "Ingest finished"
		}
		cv.refresh()
		return cv, nil

	case modelSelectedMsg:
		cv.model = msg.model
		cv.status = "Model: " + msg.model
		return cv, nil
	}

	var cmd tea.Cmd
	cv.input, cmd = cv.input.Update(msg)
	return cv, cmd
}

// submit handles the current input line.
func (cv *ChatView) submit() tea.Cmd {
	text := strings.TrimSpace(cv.input.Value())
	if text == "" || cv.loading {
		return nil
	}
	cv.input.SetValue("")

	if strings.HasPrefix(text, "/") {
		return cv.command(text)
	}

	cv.entries = append(cv.entries, entry{role: domain.RoleUser, content: text})
	cv.loading = true
	cv.status = "Thinking..."
	cv.refresh()

	backend, kind, sessionID := cv.backend, cv.kind, cv.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return answerMsg{result: backend.Answer(ctx, text, kind, sessionID)}
	}
}

func (cv *ChatView) command(text string) tea.Cmd {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/kind":
		if len(fields) < 2 {
			cv.status = "Kind: " + string(cv.kind)
			return nil
		}
		kind, err := domain.ParseKind(fields[1])
		if err != nil {
			cv.status = err.Error()
			return nil
		}
		cv.kind = kind
		cv.status = "Kind: " + string(kind)

	case "/new":
		cv.sessionID = cv.backend.NewSession()
		cv.entries = nil
		cv.status = "New session"

	case "/clear":
		cv.backend.ClearSession(cv.sessionID)
		cv.entries = nil
		cv.status = "Session cleared"

	case "/verbose":
		cv.verbose = !cv.verbose
		cv.status = fmt.Sprintf("Verbose: %t", cv.verbose)

	case "/models":
		return func() tea.Msg { return showModelsMsg{} }

	case "/ingest":
		if len(fields) < 2 {
			cv.status = "usage: /ingest <path> [company]"
			return nil
		}
		path := fields[1]
		company := strings.Join(fields[2:], " ")
		cv.loading = true
		cv.status = "Ingesting " + path + "..."
		return ingest(cv.backend, path, company)

	case "/help":
		cv.entries = append(cv.entries, entry{role: domain.RoleSystem, content: helpText})

	default:
		cv.status = "unknown command " + fields[0]
	}
	cv.refresh()
	return nil
}

func ingest(backend Backend, path, company string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		info, err := os.Stat(path)
		if err != nil {
			return ingestMsg{err: err}
		}
		if info.IsDir() {
			report, err := backend.IngestDirectory(ctx, path)
			if err != nil {
				return ingestMsg{err: err}
			}
			return ingestMsg{summary: fmt.Sprintf("Ingested %d, skipped %d, failed %d in %s",
				report.Ingested(), report.Skipped(), len(report.Failures), path)}
		}

		res, err := backend.IngestFile(ctx, path, company)
		if err != nil {
			return ingestMsg{err: err}
		}
		if res.Skipped {
			return ingestMsg{summary: fmt.Sprintf("%s is already ingested", res.File)}
		}
		return ingestMsg{summary: fmt.Sprintf("Ingested %s (%s): %d chunks", res.File, res.CompanyName, res.Chunks)}
	}
}

func (cv *ChatView) resize(width, height int) {
	cv.ready = true
	cv.width = width

	_, hh := historyStyle.GetFrameSize()
	_, ih := inputStyle.GetFrameSize()
	reserved := 1 + (ih + 1) + 1 // header, input box, status
	cv.viewport.Width = max(20, width-2)
	cv.viewport.Height = max(3, height-reserved-hh)
	cv.input.Width = max(10, width-6)
	cv.refresh()
}

func (cv *ChatView) refresh() {
	cv.viewport.SetContent(lipgloss.NewStyle().Width(cv.viewport.Width).Render(cv.renderEntries()))
	cv.viewport.GotoBottom()
}

func (cv *ChatView) renderEntries() string {
	if len(cv.entries) == 0 {
		return mutedStyle.Render(helpText)
	}

	var blocks []string
	for _, e := range cv.entries {
		switch {
		case e.role == domain.RoleUser:
			blocks = append(blocks, userStyle.Render("You: ")+e.content)
		case e.answer != nil:
			blocks = append(blocks, cv.renderAnswer(*e.answer, e.failed))
		case e.failed:
			blocks = append(blocks, errorStyle.Render(e.content))
		default:
			blocks = append(blocks, mutedStyle.Render(e.content))
		}
	}
	if cv.loading {
		blocks = append(blocks, mutedStyle.Render("AI: thinking..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (cv *ChatView) renderAnswer(a domain.Answer, failed bool) string {
	if failed {
		return errorStyle.Render("AI: "+formatFinalAnswer(a.FinalAnswer)) + "\n" +
			errorStyle.Render(a.StepByStepAnalysis)
	}

	lines := []string{accentStyle.Render("AI: ") + formatFinalAnswer(a.FinalAnswer)}
	if a.ReasoningSummary != "" {
		lines = append(lines, formatMarkdown(a.ReasoningSummary))
	}
	if cv.verbose && a.StepByStepAnalysis != "" {
		lines = append(lines, "", formatMarkdown(a.StepByStepAnalysis))
	}

	refs := make([]string, 0, len(a.References))
	for _, r := range a.References {
		refs = append(refs, fmt.Sprintf("%s#%d", shortSHA(r.PDFSHA1), r.PageIndex))
	}
	sources := "pages " + formatPages(a.RelevantPages)
	if len(refs) > 0 {
		sources += " | " + strings.Join(refs, ", ")
	}
	lines = append(lines, mutedStyle.Render(sources))
	return strings.Join(lines, "\n")
}

// View renders the chat screen.
func (cv *ChatView) View() string {
	if !cv.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Report Q&A") + "  " +
		mutedStyle.Render(fmt.Sprintf("model %s | kind %s | session %s", cv.model, cv.kind, shortSHA(cv.sessionID)))
	status := mutedStyle.Render(cv.status + "  (PgUp/PgDn scroll, Ctrl+C quit)")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		historyStyle.Render(cv.viewport.View()),
		inputStyle.Render(cv.input.View()),
		status,
	)
}
