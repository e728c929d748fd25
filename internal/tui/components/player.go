package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/service"
	"github.com/mmcdole/storywave/internal/tui/styles"
)

// PlayerMarks are the viewer's flags on the bound story
type PlayerMarks struct {
	Liked bool
	Saved bool
}

// RenderMiniPlayer renders the one-line player shown under the list.
// Returns "" when nothing is bound.
func RenderMiniPlayer(state service.PlaybackState, width int) string {
	if !state.Bound() {
		return ""
	}

	glyph := styles.PausedChar
	if state.Transport == service.TransportPlaying {
		glyph = styles.PlayingChar
	}
	clock := fmt.Sprintf("%s / %s", domain.FormatTime(state.Position), domain.FormatTime(state.Duration))
	rate := rateLabel(state.Rate)

	fixed := lipgloss.Width(glyph) + lipgloss.Width(clock) + lipgloss.Width(rate) + 8
	titleWidth := max((width-fixed)/2, 8)
	barWidth := max(width-fixed-titleWidth, 3)

	title := styles.TitleStyle.Render(styles.Pad(styles.Truncate(state.Story.Title, titleWidth), titleWidth))
	line := fmt.Sprintf("%s %s  %s  %s %s",
		styles.AccentStyle.Render(glyph), title,
		styles.RenderProgressBar(state.Progress(), barWidth),
		styles.DimStyle.Render(clock), styles.DimStyle.Render(rate))

	if state.Err != nil && !state.Available {
		line = fmt.Sprintf("%s %s  %s", styles.ErrorStyle.Render("!"), title,
			styles.ErrorStyle.Render("audio unavailable"))
	}
	return styles.PlayerStyle.Width(width).Render(line)
}

// RenderFullPlayer renders the expanded player view
func RenderFullPlayer(state service.PlaybackState, marks PlayerMarks, width, height int) string {
	if !state.Bound() {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			styles.DimStyle.Render("Nothing playing"))
	}
	st := state.Story

	innerWidth := max(width-8, 10)
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(styles.Truncate(st.Title, innerWidth)))
	b.WriteString("\n")
	creator := st.CreatorName
	if creator == "" {
		creator = service.AnonymousCreator
	}
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("%s · %s", creator, st.Category.Label())))
	b.WriteString("\n\n")

	if st.Description != "" {
		b.WriteString(lipgloss.NewStyle().Width(innerWidth).Foreground(styles.LightGray).Render(st.Description))
		b.WriteString("\n\n")
	}

	b.WriteString(styles.RenderProgressBar(state.Progress(), innerWidth))
	b.WriteString("\n")
	left := domain.FormatTime(state.Position)
	right := domain.FormatTime(state.Duration)
	gap := max(innerWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)
	b.WriteString(styles.DimStyle.Render(left + strings.Repeat(" ", gap) + right))
	b.WriteString("\n\n")

	transport := styles.PausedChar + " Paused"
	if state.Transport == service.TransportPlaying {
		transport = styles.PlayingChar + " Playing"
	}
	heart := styles.UnlikedChar
	if marks.Liked {
		heart = styles.LikedStyle.Render(styles.LikedChar)
	}
	saved := "Save"
	if marks.Saved {
		saved = "Saved"
	}
	b.WriteString(fmt.Sprintf("%s   %s   %s %s   %s   ▷ %s",
		styles.AccentStyle.Render(transport), rateLabel(state.Rate),
		heart, domain.FormatCount(st.LikeCount), saved, domain.FormatCount(st.ViewCount)))

	if state.Err != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.ErrorStyle.Render("Audio error: " + state.Err.Error()))
	}

	box := styles.FullPlayerStyle.Width(innerWidth + 4).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func rateLabel(rate float64) string {
	if rate == 0 {
		rate = 1
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", rate), "0"), ".") + "x"
}
