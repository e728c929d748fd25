package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/tui/styles"
)

// StoryList is a scrollable story list with an inline fuzzy filter
type StoryList struct {
	stories []domain.Story
	liked   map[string]bool
	saved   map[string]bool
	playing string // ID of the bound story

	cursor int
	offset int
	width  int
	height int

	loading      bool
	spinnerFrame int
	err          error
	emptyText    string

	filterActive bool
	filterInput  textinput.Model
	filteredIdx  []int // nil when no filter applies
}

// NewStoryList creates an empty list
func NewStoryList() StoryList {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.PromptStyle = styles.FilterPromptStyle
	ti.CharLimit = 64
	return StoryList{
		liked:       map[string]bool{},
		saved:       map[string]bool{},
		emptyText:   "No stories",
		filterInput: ti,
	}
}

// SetStories replaces the contents, keeping the filter and the cursor when
// the selected story is still present
func (l *StoryList) SetStories(stories []domain.Story) {
	selected, hadSelection := l.Selected()
	l.stories = stories
	l.loading = false
	l.err = nil
	l.applyFilter()

	l.cursor = 0
	if hadSelection {
		for i := 0; i < l.visibleCount(); i++ {
			if l.storyAt(i).ID == selected.ID {
				l.cursor = i
				break
			}
		}
	}
	l.clampOffset()
}

// SetMarks updates the liked and saved indicators
func (l *StoryList) SetMarks(liked, saved []string) {
	l.liked = toSet(liked)
	l.saved = toSet(saved)
}

// SetPlaying marks the bound story
func (l *StoryList) SetPlaying(id string) {
	l.playing = id
}

// SetLoading shows the spinner in place of an empty list
func (l *StoryList) SetLoading(loading bool) {
	l.loading = loading
}

// IsLoading reports whether a load is pending
func (l StoryList) IsLoading() bool {
	return l.loading
}

// SetError shows err in place of the list
func (l *StoryList) SetError(err error) {
	l.loading = false
	l.err = err
}

// SetEmptyText sets the message shown for an empty list
func (l *StoryList) SetEmptyText(text string) {
	l.emptyText = text
}

// SetSize sets the render area
func (l *StoryList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.filterInput.Width = max(width-4, 1)
	l.clampOffset()
}

// SetSpinnerFrame advances the loading animation
func (l *StoryList) SetSpinnerFrame(frame int) {
	l.spinnerFrame = frame
}

// Len returns the number of visible stories
func (l StoryList) Len() int {
	return l.visibleCount()
}

// Selected returns the story under the cursor
func (l StoryList) Selected() (domain.Story, bool) {
	if l.cursor < 0 || l.cursor >= l.visibleCount() {
		return domain.Story{}, false
	}
	return l.storyAt(l.cursor), true
}

// MoveUp moves the cursor up one row
func (l *StoryList) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
	}
	l.clampOffset()
}

// MoveDown moves the cursor down one row
func (l *StoryList) MoveDown() {
	if l.cursor < l.visibleCount()-1 {
		l.cursor++
	}
	l.clampOffset()
}

// StartFilter focuses the filter input
func (l *StoryList) StartFilter() tea.Cmd {
	l.filterActive = true
	return l.filterInput.Focus()
}

// IsFiltering returns true while the filter input has focus
func (l StoryList) IsFiltering() bool {
	return l.filterActive
}

// FilterQuery returns the applied filter text
func (l StoryList) FilterQuery() string {
	return l.filterInput.Value()
}

// ClearFilter removes the filter and shows every story
func (l *StoryList) ClearFilter() {
	l.filterActive = false
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.filteredIdx = nil
	l.cursor = 0
	l.offset = 0
}

// Update feeds key input to the filter while it has focus. Enter keeps the
// filter applied, esc clears it.
func (l StoryList) Update(msg tea.Msg) (StoryList, tea.Cmd) {
	if !l.filterActive {
		return l, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			l.filterActive = false
			l.filterInput.Blur()
			return l, nil
		case "esc":
			l.ClearFilter()
			return l, nil
		}
	}

	var cmd tea.Cmd
	l.filterInput, cmd = l.filterInput.Update(msg)
	l.applyFilter()
	l.cursor = 0
	l.offset = 0
	return l, cmd
}

func (l *StoryList) applyFilter() {
	query := strings.TrimSpace(l.filterInput.Value())
	if query == "" {
		l.filteredIdx = nil
		return
	}

	titles := make([]string, len(l.stories))
	for i, st := range l.stories {
		titles[i] = strings.ToLower(st.Title + " " + st.CreatorName)
	}

	matches := fuzzy.Find(strings.ToLower(query), titles)
	l.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		l.filteredIdx[i] = match.Index
	}
}

func (l StoryList) visibleCount() int {
	if l.filteredIdx != nil {
		return len(l.filteredIdx)
	}
	return len(l.stories)
}

func (l StoryList) storyAt(i int) domain.Story {
	if l.filteredIdx != nil {
		return l.stories[l.filteredIdx[i]]
	}
	return l.stories[i]
}

// rows is the number of list rows that fit, one story per row
func (l StoryList) rows() int {
	rows := l.height
	if l.filterActive || l.filterInput.Value() != "" {
		rows--
	}
	return max(rows, 1)
}

func (l *StoryList) clampOffset() {
	rows := l.rows()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+rows {
		l.offset = l.cursor - rows + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// View renders the list
func (l StoryList) View() string {
	var lines []string
	if l.filterActive || l.filterInput.Value() != "" {
		lines = append(lines, l.filterInput.View())
	}

	switch {
	case l.err != nil:
		lines = append(lines, styles.ErrorStyle.Render("Error: "+l.err.Error()))
	case l.loading && len(l.stories) == 0:
		spinner := styles.SpinnerFrames[l.spinnerFrame%len(styles.SpinnerFrames)]
		lines = append(lines, styles.SpinnerStyle.Render(spinner)+styles.DimStyle.Render(" Loading..."))
	case l.visibleCount() == 0:
		text := l.emptyText
		if l.filteredIdx != nil {
			text = "No matches"
		}
		lines = append(lines, styles.DimStyle.Render(text))
	default:
		end := min(l.offset+l.rows(), l.visibleCount())
		for i := l.offset; i < end; i++ {
			lines = append(lines, l.renderRow(l.storyAt(i), i == l.cursor))
		}
	}

	return lipgloss.NewStyle().Width(l.width).Height(l.height).Render(strings.Join(lines, "\n"))
}

func (l StoryList) renderRow(st domain.Story, selected bool) string {
	marker := " "
	if st.ID == l.playing {
		marker = styles.PlayingChar
	}
	heart := styles.UnlikedChar
	if l.liked[st.ID] {
		heart = styles.LikedChar
	}
	saved := " "
	if l.saved[st.ID] {
		saved = styles.SavedChar
	}

	meta := fmt.Sprintf("%-10s %s %5s  ▷ %5s",
		st.Category.Label(), heart, domain.FormatCount(st.LikeCount), domain.FormatCount(st.ViewCount))
	titleWidth := l.width - lipgloss.Width(meta) - 8
	title := styles.Pad(styles.Truncate(st.Title, titleWidth), titleWidth)

	row := fmt.Sprintf("%s %s %s  %s", marker, saved, title, meta)
	if selected {
		return styles.SelectedItemStyle.Render(row)
	}
	return styles.NormalItemStyle.Render(row)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
