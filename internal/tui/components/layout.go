package components

import (
	"strings"

	"kbmcp/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type LayoutConfig struct {
	Title    string
	Subtitle string
	HelpText string
	// Status is a single line above the help text, e.g. token usage.
	Status   string
	MarginX  int
	MarginY  int
	MaxWidth int
}

// LayoutModel frames a view with a title, error, status and help sections.
type LayoutModel struct {
	config LayoutConfig
	width  int
	height int
	err    error
}

func NewLayout(config LayoutConfig) LayoutModel {
	if config.MarginX == 0 {
		config.MarginX = 2
	}
	if config.MarginY == 0 {
		config.MarginY = 1
	}
	if config.MaxWidth == 0 {
		config.MaxWidth = 100
	}

	return LayoutModel{config: config}
}

func (m LayoutModel) Update(msg tea.Msg) (LayoutModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m LayoutModel) SetStatus(status string) LayoutModel {
	m.config.Status = status
	return m
}

func (m LayoutModel) SetError(err error) LayoutModel {
	if err != nil {
		m.err = err
	}
	return m
}

func (m LayoutModel) ClearError() LayoutModel {
	m.err = nil
	return m
}

func (m LayoutModel) GetError() error {
	return m.err
}

// SetConfig replaces the configuration, keeping margins and width for zero values.
func (m LayoutModel) SetConfig(config LayoutConfig) LayoutModel {
	if config.MarginX == 0 {
		config.MarginX = m.config.MarginX
	}
	if config.MarginY == 0 {
		config.MarginY = m.config.MarginY
	}
	if config.MaxWidth == 0 {
		config.MaxWidth = m.config.MaxWidth
	}
	m.config = config
	return m
}

// Render frames plain text content, word-wrapped to the content width.
func (m LayoutModel) Render(content string) string {
	if content != "" {
		content = styles.NormalTextStyle.Render(m.wrapText(content, m.ContentWidth()))
	}
	return m.RenderRaw(content)
}

// RenderRaw frames content that is already styled and sized, such as a
// viewport or a text input.
func (m LayoutModel) RenderRaw(content string) string {
	sections := []string{}
	contentWidth := m.ContentWidth()

	if m.config.Title != "" {
		sections = append(sections, styles.TitleStyle.Render(m.wrapText(m.config.Title, contentWidth)))
	}
	if m.config.Subtitle != "" {
		sections = append(sections, styles.SubtitleStyle.Render(m.wrapText(m.config.Subtitle, contentWidth)))
	}
	if content != "" {
		sections = append(sections, content)
	}
	if m.err != nil {
		errorText := "Error: " + m.err.Error()
		sections = append(sections, styles.ErrorStyle.Render(m.wrapText(errorText, contentWidth)))
	}
	if m.config.Status != "" {
		sections = append(sections, styles.StatusStyle.Render(m.config.Status))
	}
	if m.config.HelpText != "" {
		sections = append(sections, styles.HelpStyle.Render(m.wrapText(m.config.HelpText, contentWidth)))
	}

	return m.addMargins(strings.Join(sections, "\n\n"))
}

func (m LayoutModel) wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	paragraphs := strings.Split(text, "\n\n")
	for i, paragraph := range paragraphs {
		lines := strings.Split(paragraph, "\n")
		for j, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" {
				line = wordwrap.String(line, width)
			}
			lines[j] = line
		}
		paragraphs[i] = strings.Join(lines, "\n")
	}
	return strings.Join(paragraphs, "\n\n")
}

func (m LayoutModel) addMargins(content string) string {
	lines := strings.Split(content, "\n")
	marginLeft := strings.Repeat(" ", m.config.MarginX)

	for i, line := range lines {
		lines[i] = marginLeft + line
	}

	margin := strings.Repeat("\n", m.config.MarginY)
	return margin + strings.Join(lines, "\n") + margin
}

// ContentWidth is the usable width inside the margins, clamped to [40, MaxWidth].
func (m LayoutModel) ContentWidth() int {
	available := m.width - (m.config.MarginX * 2)
	if available > m.config.MaxWidth {
		return m.config.MaxWidth
	}
	if available < 40 {
		return 40
	}
	return available
}

// ChromeHeight is the number of lines RenderRaw draws around a single line
// of content: margins, title, subtitle, error, status, help and the gaps
// between them.
func (m LayoutModel) ChromeHeight() int {
	return lipgloss.Height(m.RenderRaw(" ")) - 1
}

// ContentHeight is what is left of the window height for content once the
// sections in the current config are drawn.
func (m LayoutModel) ContentHeight() int {
	h := m.height - m.ChromeHeight()
	if h < 0 {
		return 0
	}
	return h
}
