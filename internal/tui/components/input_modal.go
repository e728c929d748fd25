package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/storywave/internal/tui/styles"
)

const (
	promptWidth = 36
	promptHint  = "enter to search · esc to cancel"
)

// InputModal is a single-line prompt shown over the list. It keeps the last
// submitted text so reopening it offers the previous query.
type InputModal struct {
	visible bool
	title   string
	last    string
	input   textinput.Model
}

// NewInputModal creates a hidden modal
func NewInputModal() InputModal {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.PromptStyle = styles.AccentStyle
	ti.CharLimit = 100
	ti.Width = promptWidth - 2
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle
	return InputModal{input: ti}
}

// Show opens the modal. The previous submission is preselected as the
// starting text.
func (m *InputModal) Show(title, placeholder string) tea.Cmd {
	m.visible = true
	m.title = title
	m.input.Placeholder = placeholder
	m.input.SetValue(m.last)
	m.input.CursorEnd()
	return m.input.Focus()
}

// Hide dismisses the modal
func (m *InputModal) Hide() {
	m.visible = false
	m.input.Blur()
}

// IsVisible returns whether the modal is shown
func (m InputModal) IsVisible() bool {
	return m.visible
}

// Value returns the trimmed input
func (m InputModal) Value() string {
	return strings.TrimSpace(m.input.Value())
}

// Update feeds a message to the input. submitted is true when enter was
// pressed; the caller hides the modal.
func (m InputModal) Update(msg tea.Msg) (modal InputModal, cmd tea.Cmd, submitted bool) {
	if !m.visible {
		return m, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			m.last = m.Value()
			return m, nil, true
		case tea.KeyEsc:
			m.Hide()
			return m, nil, false
		}
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd, false
}

// View renders the modal box
func (m InputModal) View() string {
	if !m.visible {
		return ""
	}
	body := lipgloss.NewStyle().Width(promptWidth).Render(m.input.View())
	return styles.ModalStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(m.title),
		body,
		"",
		styles.DimStyle.Render(promptHint),
	))
}
