// Package chatmodel is the interactive question/answer view.
//
// Questions typed into the input are answered by a helpers.Asker in the
// background while a spinner runs. Answers are rendered as markdown with
// glamour into a scrolling transcript, and the status line shows the token
// usage recorded so far.
package chatmodel

import (
	"fmt"
	"os"
	"strings"
	"time"

	"kbmcp/internal/adapter"
	"kbmcp/internal/logging"
	"kbmcp/internal/tui/components"
	"kbmcp/internal/tui/helpers"
	"kbmcp/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

const (
	// inputHeight is the bordered input box; busyHeight the spinner line
	// above it, kept blank while idle so the viewport does not jump.
	inputHeight   = 3
	busyHeight    = 1
	minViewHeight = 5
	clearCommand  = "/clear"
)

type role int

const (
	roleUser role = iota
	roleAssistant
	roleError
)

type entry struct {
	role role
	text string
	// note is shown under an assistant answer, e.g. the matched question.
	note string
}

// AnswerMsg carries the result of one background Ask.
type AnswerMsg struct {
	Query  string
	Answer adapter.Answer
	Err    error
}

// ChatModel is the chat view.
type ChatModel struct {
	ctx    helpers.UIContext
	logger *logging.AppLogger
	layout components.LayoutModel

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries      []entry
	busy         bool
	glamourStyle string
	renderer     *glamour.TermRenderer
	rendererW    int
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithGlamourStyle fixes the markdown style instead of probing the terminal.
func WithGlamourStyle(style string) Option {
	return func(m *ChatModel) { m.glamourStyle = style }
}

func NewChatModel(ctx helpers.UIContext, opts ...Option) *ChatModel {
	logger := ctx.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}

	input := textinput.New()
	input.Placeholder = "Ask about company policies..."
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	m := &ChatModel{
		ctx:      ctx,
		logger:   logger,
		layout:   components.NewLayout(components.LayoutConfig{MarginX: 2, MarginY: 1, MaxWidth: 110}),
		input:    input,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
	for _, opt := range opts {
		opt(m)
	}

	if ctx.HasValidDimensions() {
		m.resize(ctx.Width, ctx.Height)
	}
	return m
}

func (m *ChatModel) Init() tea.Cmd {
	// Probe once; repeated OSC queries while rendering garble some terminals.
	if m.glamourStyle == "" {
		m.glamourStyle = detectGlamourStyle(50 * time.Millisecond)
		m.logger.Debug("Glamour style selected", "style", m.glamourStyle)
	}
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.logger.LogUserAction("chat_quit", msg.String())
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case AnswerMsg:
		m.busy = false
		m.handleAnswer(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *ChatModel) submit() tea.Cmd {
	query := strings.TrimSpace(m.input.Value())
	if query == "" || m.busy {
		return nil
	}
	m.input.Reset()

	if query == clearCommand {
		m.entries = nil
		m.layout = m.layout.ClearError()
		m.refresh()
		return nil
	}

	m.entries = append(m.entries, entry{role: roleUser, text: query})
	m.busy = true
	m.layout = m.layout.ClearError()
	m.refresh()

	m.logger.Debug("Question submitted", "length", len(query))
	return tea.Batch(m.spinner.Tick, m.ask(query))
}

func (m *ChatModel) ask(query string) tea.Cmd {
	asker, ctx := m.ctx.Asker, m.ctx.Ctx
	return func() tea.Msg {
		if asker == nil {
			return AnswerMsg{Query: query, Err: fmt.Errorf("no assistant configured")}
		}
		answer, err := asker.Ask(ctx, query)
		return AnswerMsg{Query: query, Answer: answer, Err: err}
	}
}

func (m *ChatModel) handleAnswer(msg AnswerMsg) {
	if msg.Err != nil {
		m.logger.Error("Question failed", "error", msg.Err)
		m.entries = append(m.entries, entry{role: roleError, text: msg.Err.Error()})
		m.layout = m.layout.SetError(msg.Err)
		m.refresh()
		return
	}

	m.entries = append(m.entries, entry{
		role: roleAssistant,
		text: msg.Answer.Text,
		note: matchNote(msg.Answer),
	})
	m.refresh()
}

func matchNote(a adapter.Answer) string {
	switch {
	case !a.UsedTool:
		return "answered without the knowledge base"
	case a.Match.Found():
		return fmt.Sprintf("matched Q%d (score %d): %s", a.Match.Ordinal, a.Match.Score, a.Match.Record.Question)
	default:
		return "no stored question shares a word with this one"
	}
}

func (m *ChatModel) resize(width, height int) {
	m.layout, _ = m.layout.Update(tea.WindowSizeMsg{Width: width, Height: height})
	m.layout = m.layout.SetConfig(m.layoutConfig())

	w := m.layout.ContentWidth()
	m.viewport.Width = w
	// prompt, cursor, padding and border
	m.input.Width = w - 7
	m.fitViewport()

	m.refresh()
}

// fitViewport gives the transcript whatever height the layout leaves after
// the spinner line and the input box. The status and error sections change
// between frames, so this runs before every render.
func (m *ChatModel) fitViewport() {
	h := m.layout.ContentHeight() - busyHeight - inputHeight
	if h < minViewHeight {
		h = minViewHeight
	}
	if h == m.viewport.Height {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.Height = h
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) layoutConfig() components.LayoutConfig {
	return components.LayoutConfig{
		Title:    "📚 Knowledge Base Chat",
		Subtitle: "Answers come from the company knowledge base over MCP",
		Status:   m.status(),
		HelpText: "Enter to ask • ↑/↓ PgUp/PgDn to scroll • /clear to reset • Esc or Ctrl+C to quit",
	}
}

// refresh re-renders the transcript and scrolls to the newest entry.
func (m *ChatModel) refresh() {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(e))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *ChatModel) renderEntry(e entry) string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	switch e.role {
	case roleUser:
		return styles.UserLabelStyle.Render("You") + "\n" + wordwrap.String(e.text, width) + "\n"
	case roleError:
		return styles.ErrorStyle.Render(wordwrap.String("Error: "+e.text, width)) + "\n"
	}

	out := styles.AssistantLabelStyle.Render("Assistant") + "\n" + m.renderMarkdown(e.text, width)
	if e.note != "" {
		out += styles.MatchStyle.Render(wordwrap.String(e.note, width)) + "\n"
	}
	return out
}

func (m *ChatModel) renderMarkdown(text string, width int) string {
	if m.renderer == nil || m.rendererW != width {
		style := m.glamourStyle
		if style == "" {
			style = "dark"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Error("Failed to create glamour renderer", "error", err)
			return wordwrap.String(text, width) + "\n"
		}
		m.renderer, m.rendererW = renderer, width
	}

	out, err := m.renderer.Render(text)
	if err != nil {
		m.logger.Error("Failed to render answer with glamour", "error", err)
		return wordwrap.String(text, width) + "\n"
	}
	return out
}

func (m *ChatModel) status() string {
	if m.ctx.Tracker == nil {
		return ""
	}
	total := m.ctx.Tracker.Total()
	s := fmt.Sprintf("tokens: %d (%d model calls)", total.TotalTokens, total.Calls)
	if total.Estimated {
		s += ", partly estimated"
	}
	if m.ctx.Provider != "" {
		s = m.ctx.Provider + " • " + s
	}
	return s
}

func (m *ChatModel) View() string {
	m.layout = m.layout.SetConfig(m.layoutConfig())
	m.fitViewport()

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " Thinking...")
	}
	b.WriteString("\n")
	b.WriteString(styles.InputStyle.Render(m.input.View()))

	return m.layout.RenderRaw(b.String())
}

// Busy reports whether a question is in flight.
func (m *ChatModel) Busy() bool {
	return m.busy
}

// Transcript returns the plain text of every entry, oldest first.
func (m *ChatModel) Transcript() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.text)
	}
	return out
}

// detectGlamourStyle asks the terminal for its background, falling back to
// dark when it does not answer within timeout. GLAMOUR_STYLE overrides.
func detectGlamourStyle(timeout time.Duration) string {
	style := os.Getenv("GLAMOUR_STYLE")
	if style != "" && style != "auto" {
		return style
	}

	ch := make(chan string, 1)
	go func() {
		if termenv.NewOutput(os.Stdout).HasDarkBackground() {
			ch <- "dark"
			return
		}
		ch <- "light"
	}()

	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		return "dark"
	}
}
