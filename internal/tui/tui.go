// Package tui provides the terminal user interface for kbmcp.
//
// The TUI is built on Bubble Tea and Lip Gloss. MainModel is the root model:
// it owns the context that in-flight questions run under, delegates input to
// the active view (the chat) and shows fatal errors in a framed error view.
// Quitting cancels the context so a pending model call or MCP round-trip is
// abandoned rather than awaited.
package tui

import (
	"context"
	"fmt"

	"kbmcp/internal/logging"
	"kbmcp/internal/tui/chatmodel"
	"kbmcp/internal/tui/components"
	"kbmcp/internal/tui/helpers"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// AppState represents the current state of the TUI application.
type AppState int

const (
	StateChat AppState = iota
	StateError
	StateQuitting
)

func (s AppState) String() string {
	switch s {
	case StateChat:
		return "chat"
	case StateError:
		return "error"
	case StateQuitting:
		return "quitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrorMsg switches to the error view.
type ErrorMsg struct {
	Err error
}

// MainModel is the root model for the TUI application.
type MainModel struct {
	uiCtx  helpers.UIContext
	logger *logging.AppLogger
	cancel context.CancelFunc

	state  AppState
	chat   tea.Model
	layout components.LayoutModel
	err    error
}

// NewMainModel derives a cancellable context from uiCtx.Ctx for the chat.
func NewMainModel(uiCtx helpers.UIContext, opts ...chatmodel.Option) *MainModel {
	if uiCtx.Logger == nil {
		uiCtx.Logger = logging.GetDefault()
	}
	parent := uiCtx.Ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	uiCtx.Ctx = ctx

	return &MainModel{
		uiCtx:  uiCtx,
		logger: uiCtx.Logger,
		cancel: cancel,
		state:  StateChat,
		chat:   chatmodel.NewChatModel(uiCtx, opts...),
		layout: components.NewLayout(components.LayoutConfig{}),
	}
}

func (m *MainModel) Init() tea.Cmd {
	m.logger.Info("MainModel initialized")
	return m.chat.Init()
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !isTick(msg) {
		m.logger.LogMessage(msg)
	}
	m.layout, _ = m.layout.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.uiCtx.Width, m.uiCtx.Height = msg.Width, msg.Height
		return m.delegate(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.state == StateChat && msg.String() == "esc" {
			return m.quit()
		}
		if m.state == StateError {
			if msg.String() == "esc" {
				m.logger.LogStateTransition("MainModel", StateError.String(), StateChat.String())
				m.state = StateChat
				m.err = nil
				m.layout = m.layout.ClearError()
			}
			return m, nil
		}

	case ErrorMsg:
		m.logger.Error("Application error occurred", "error", msg.Err)
		m.err = msg.Err
		m.state = StateError
		m.layout = m.layout.SetError(msg.Err)
		return m, nil
	}

	return m.delegate(msg)
}

func (m *MainModel) delegate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

func (m *MainModel) quit() (tea.Model, tea.Cmd) {
	m.logger.LogStateTransition("MainModel", m.state.String(), StateQuitting.String())
	m.state = StateQuitting
	m.cancel()
	return m, tea.Quit
}

func (m *MainModel) View() string {
	switch m.state {
	case StateQuitting:
		m.layout = m.layout.SetConfig(components.LayoutConfig{Title: "👋 Goodbye!"})
		return m.layout.Render("Thank you for using kbmcp!")
	case StateError:
		m.layout = m.layout.SetConfig(components.LayoutConfig{
			Title:    "❌ Error",
			Subtitle: "Something went wrong",
			HelpText: "Press Esc to return • Ctrl+C to quit",
		})
		return m.layout.Render("")
	}
	return m.chat.View()
}

// State returns the current application state.
func (m *MainModel) State() AppState {
	return m.state
}

// Err returns the error shown in the error view, if any.
func (m *MainModel) Err() error {
	return m.err
}

// Context is cancelled once the UI quits.
func (m *MainModel) Context() context.Context {
	return m.uiCtx.Ctx
}

// Run starts the chat UI on the alternate screen and blocks until it quits.
func Run(uiCtx helpers.UIContext, opts ...chatmodel.Option) error {
	m := NewMainModel(uiCtx, opts...)
	defer m.cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(m.Context()))
	_, err := p.Run()
	if err != nil && m.Context().Err() == nil {
		return fmt.Errorf("run chat UI: %w", err)
	}
	return nil
}

// isTick reports animation messages that arrive several times a second.
func isTick(msg tea.Msg) bool {
	switch msg.(type) {
	case spinner.TickMsg, cursor.BlinkMsg:
		return true
	}
	return false
}
