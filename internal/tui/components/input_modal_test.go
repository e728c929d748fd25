package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestInputModalSubmitRemembersQuery(t *testing.T) {
	m := NewInputModal()
	require.False(t, m.IsVisible())
	require.Empty(t, m.View())

	m.Show("Search stories", "title")
	require.True(t, m.IsVisible())
	require.Contains(t, m.View(), "Search stories")

	for _, r := range " moon " {
		m, _, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	var submitted bool
	m, _, submitted = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, submitted)
	require.Equal(t, "moon", m.Value())

	m.Hide()
	m.Show("Search stories", "title")
	require.Equal(t, "moon", m.Value())
}

func TestInputModalEscCancels(t *testing.T) {
	m := NewInputModal()
	m.Show("Search stories", "title")

	var submitted bool
	m, _, submitted = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, submitted)
	require.False(t, m.IsVisible())

	// Hidden modals ignore input
	m, _, submitted = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, submitted)
}
