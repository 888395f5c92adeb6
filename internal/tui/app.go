// Package tui is the interactive terminal console.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenChat screen = iota
	screenModels
)

// App switches between the chat console and the model picker.
type App struct {
	chat     *ChatView
	models   *ModelsView
	setModel func(string)
	screen   screen
}

// NewApp creates the console. lister and setModel may be nil when the chat
// provider has no local model list.
func NewApp(backend Backend, model string, lister ModelLister, setModel func(string)) *App {
	a := &App{
		chat:     NewChatView(backend, model),
		setModel: setModel,
	}
	if lister != nil {
		a.models = NewModelsView(lister, model)
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.chat.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.screen == screenModels && msg.Type == tea.KeyEsc {
			a.screen = screenChat
			return a, nil
		}

	case tea.WindowSizeMsg:
		_, cmd := a.chat.Update(msg)
		return a, cmd

	case showModelsMsg:
		if a.models == nil {
			a.chat.status = "model selection needs the ollama provider"
			return a, nil
		}
		a.screen = screenModels
		return a, a.models.Init()

	case modelSelectedMsg:
		if a.setModel != nil {
			a.setModel(msg.model)
		}
		if a.models != nil {
			a.models.Update(msg)
		}
		a.chat.Update(msg)
		a.screen = screenChat
		return a, nil

	case answerMsg, ingestMsg:
		_, cmd := a.chat.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	if a.screen == screenModels {
		_, cmd = a.models.Update(msg)
	} else {
		_, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.screen == screenModels {
		return a.models.View()
	}
	return a.chat.View()
}

// Run starts the console and blocks until it exits.
func Run(a *App) error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}
