package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
	"github.com/mmcdole/storywave/internal/service"
	"github.com/mmcdole/storywave/internal/tui/components"
	"github.com/mmcdole/storywave/internal/tui/styles"
)

// Tab is one story list
type Tab int

const (
	TabAll Tab = iota
	TabTrending
	TabSaved
	TabRecent
	TabMine
	TabSearch
	tabCount
)

// Title returns the tab label
func (t Tab) Title() string {
	switch t {
	case TabAll:
		return "All"
	case TabTrending:
		return "Trending"
	case TabSaved:
		return "Saved"
	case TabRecent:
		return "Recent"
	case TabMine:
		return "My Stories"
	case TabSearch:
		return "Search"
	default:
		return "?"
	}
}

const (
	tickInterval     = 100 * time.Millisecond
	defaultSkip      = 10.0
	chromeHeight     = 3 // header, tab bar, footer
	miniPlayerHeight = 2
)

// Model is the main Bubble Tea model for the application
type Model struct {
	// Services
	Stories *service.StoryService
	Player  *service.PlaybackSession
	Session *service.Session
	logger  *slog.Logger

	keys        KeyMap
	skipSeconds float64

	// Lists
	lists      [tabCount]components.StoryList
	active     Tab
	category   domain.Category // "" shows every category on the All tab
	searchTerm string
	searchBox  components.InputModal

	// Playback
	playback    service.PlaybackState
	states      <-chan service.PlaybackState
	unsubscribe func()
	liked       map[string]bool
	saved       map[string]bool

	// Cache subscriptions for the active tab and the liked/saved marks
	tabChanges   <-chan query.Snapshot
	unwatchTab   func()
	markChanges  <-chan query.Snapshot
	unwatchMarks func()

	// UI state
	width        int
	height       int
	fullPlayer   bool
	showHelp     bool
	statusMsg    string
	statusIsErr  bool
	spinnerFrame int
}

// NewModel creates the application model and subscribes to playback
func NewModel(stories *service.StoryService, player *service.PlaybackSession, session *service.Session, skipSeconds float64, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	if skipSeconds <= 0 {
		skipSeconds = defaultSkip
	}

	m := Model{
		Stories:     stories,
		Player:      player,
		Session:     session,
		logger:      logger,
		keys:        DefaultKeyMap(),
		skipSeconds: skipSeconds,
		searchBox:   components.NewInputModal(),
		liked:       map[string]bool{},
		saved:       map[string]bool{},
	}
	for i := range m.lists {
		m.lists[i] = components.NewStoryList()
	}
	m.lists[TabSaved].SetEmptyText("Your library is empty")
	m.lists[TabRecent].SetEmptyText("Nothing played yet")
	m.lists[TabMine].SetEmptyText("Sign in to see your stories")
	m.lists[TabSearch].SetEmptyText("No results")
	m.lists[TabAll].SetLoading(true)

	m.states, m.unsubscribe = player.Subscribe()
	m.playback = player.State()
	m.watchTab()
	m.watchMarks()
	return m
}

// Close releases the playback and cache subscriptions
func (m Model) Close() {
	for _, release := range []func(){m.unsubscribe, m.unwatchTab, m.unwatchMarks} {
		if release != nil {
			release()
		}
	}
}

// Init starts the first loads
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		LoadTabCmd(m.Stories, m.active, m.category, m.searchTerm),
		LoadMarksCmd(m.Stories),
		WaitForPlaybackCmd(m.states),
		WaitForCacheCmd(m.tabChanges),
		WaitForCacheCmd(m.markChanges),
		TickCmd(tickInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.spinnerFrame++
		m.lists[m.active].SetSpinnerFrame(m.spinnerFrame)
		return m, TickCmd(tickInterval)

	case StoriesLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("failed to load stories", "tab", msg.Tab.Title(), "error", msg.Err)
			m.lists[msg.Tab].SetError(msg.Err)
			return m, nil
		}
		m.lists[msg.Tab].SetStories(msg.Stories)
		return m, nil

	case MarksLoadedMsg:
		m.liked = toSet(msg.Liked)
		m.saved = toSet(msg.Saved)
		for i := range m.lists {
			m.lists[i].SetMarks(msg.Liked, msg.Saved)
		}
		return m, nil

	case PlaybackMsg:
		var cmds []tea.Cmd
		prev := m.playback.Story
		m.playback = msg.State
		id := ""
		if msg.State.Story != nil {
			id = msg.State.Story.ID
		}
		for i := range m.lists {
			m.lists[i].SetPlaying(id)
		}
		// A new binding adds to the recently played list
		if id != "" && (prev == nil || prev.ID != id) && m.active == TabRecent {
			cmds = append(cmds, m.loadActive())
		}
		cmds = append(cmds, WaitForPlaybackCmd(m.states))
		return m, tea.Batch(cmds...)

	case ActionDoneMsg:
		// Writes invalidate the cache; the watched entries trigger reloads
		if msg.Err != nil {
			m.setStatus(msg.Err.Error(), true)
			return m, nil
		}
		m.setStatus(msg.Status, false)
		return m, nil

	case CacheChangedMsg:
		return m.handleCacheChange(msg)

	case ErrMsg:
		m.setStatus(msg.Error(), true)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchBox.IsVisible() {
		var cmd tea.Cmd
		var submitted bool
		m.searchBox, cmd, submitted = m.searchBox.Update(msg)
		if !submitted {
			return m, cmd
		}
		m.searchBox.Hide()
		term := strings.TrimSpace(m.searchBox.Value())
		if term == "" {
			return m, nil
		}
		m.searchTerm = term
		m.active = TabSearch
		return m, m.showActive()
	}

	list := &m.lists[m.active]
	if list.IsFiltering() {
		var cmd tea.Cmd
		*list, cmd = list.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	m.statusMsg = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.Up):
		list.MoveUp()

	case key.Matches(msg, m.keys.Down):
		list.MoveDown()

	case key.Matches(msg, m.keys.NextTab):
		return m, m.switchTab(1)

	case key.Matches(msg, m.keys.PrevTab):
		return m, m.switchTab(-1)

	case key.Matches(msg, m.keys.Enter):
		if st, ok := list.Selected(); ok {
			return m, OpenStoryCmd(m.Player, st)
		}

	case key.Matches(msg, m.keys.Toggle):
		m.Player.Toggle()

	case key.Matches(msg, m.keys.SkipBack):
		m.Player.Skip(-m.skipSeconds)

	case key.Matches(msg, m.keys.SkipForward):
		m.Player.Skip(m.skipSeconds)

	case key.Matches(msg, m.keys.Rate):
		rate := m.Player.CycleRate()
		m.setStatus(fmt.Sprintf("Speed %gx", rate), false)

	case key.Matches(msg, m.keys.Stop):
		m.Player.Close()
		m.fullPlayer = false

	case key.Matches(msg, m.keys.FullPlayer):
		m.fullPlayer = !m.fullPlayer && m.playback.Bound()

	case key.Matches(msg, m.keys.Like):
		if st, ok := m.target(); ok {
			return m, ToggleLikeCmd(m.Stories, st)
		}

	case key.Matches(msg, m.keys.Save):
		if st, ok := m.target(); ok {
			return m, ToggleSaveCmd(m.Stories, st)
		}

	case key.Matches(msg, m.keys.Filter):
		return m, list.StartFilter()

	case key.Matches(msg, m.keys.Search):
		return m, m.searchBox.Show("Search stories", "title, creator, description")

	case key.Matches(msg, m.keys.Category):
		m.category = nextCategory(m.category)
		m.active = TabAll
		label := "All categories"
		if m.category != "" {
			label = m.category.Label()
		}
		m.setStatus(label, false)
		return m, m.showActive()

	case key.Matches(msg, m.keys.Refresh):
		n := m.Stories.Refresh()
		m.logger.Debug("refresh requested", "entries", n)
		return m, tea.Batch(m.loadActive(), LoadMarksCmd(m.Stories))
	}

	return m, nil
}

// target is the story like and save act on: the bound story in the full
// player, otherwise the selection
func (m Model) target() (domain.Story, bool) {
	if m.fullPlayer && m.playback.Story != nil {
		return *m.playback.Story, true
	}
	return m.lists[m.active].Selected()
}

func (m *Model) switchTab(delta int) tea.Cmd {
	count := int(tabCount)
	if m.searchTerm == "" {
		count-- // Search tab appears after the first search
	}
	m.active = Tab((int(m.active) + delta + count) % count)
	return m.showActive()
}

func (m *Model) loadActive() tea.Cmd {
	m.lists[m.active].SetLoading(true)
	return LoadTabCmd(m.Stories, m.active, m.category, m.searchTerm)
}

// showActive loads the active tab and moves the tab subscription to it
func (m *Model) showActive() tea.Cmd {
	return tea.Batch(m.loadActive(), m.watchTab())
}

// tabKeys lists the cache entries the active tab is built from
func (m Model) tabKeys() []query.Key {
	s := m.Stories
	switch m.active {
	case TabAll:
		if m.category != "" {
			return []query.Key{s.CategoryKey(m.category)}
		}
		return []query.Key{s.AllStoriesKey()}
	case TabTrending:
		return []query.Key{s.TrendingKey(0)}
	case TabSaved:
		return []query.Key{s.SavedKey(), s.AllStoriesKey()}
	case TabRecent:
		return []query.Key{s.AllStoriesKey()}
	case TabMine:
		return []query.Key{s.MyStoriesKey()}
	case TabSearch:
		return []query.Key{s.SearchKey(m.searchTerm)}
	}
	return nil
}

// watchTab replaces the tab subscription. Without a story service there is
// nothing to watch.
func (m *Model) watchTab() tea.Cmd {
	if m.unwatchTab != nil {
		m.unwatchTab()
	}
	if m.Stories == nil {
		m.tabChanges, m.unwatchTab = nil, nil
		return nil
	}
	m.tabChanges, m.unwatchTab = m.Stories.Cache().Subscribe(m.tabKeys()...)
	return WaitForCacheCmd(m.tabChanges)
}

func (m *Model) watchMarks() tea.Cmd {
	if m.unwatchMarks != nil {
		m.unwatchMarks()
	}
	if m.Stories == nil {
		m.markChanges, m.unwatchMarks = nil, nil
		return nil
	}
	m.markChanges, m.unwatchMarks = m.Stories.Cache().Subscribe(m.Stories.LikedKey(), m.Stories.SavedKey())
	return WaitForCacheCmd(m.markChanges)
}

// handleCacheChange reloads whatever a stale entry backs. A cleared cache
// means the identity changed, so both subscriptions move to the new keys.
// Changes from a replaced subscription are dropped.
func (m Model) handleCacheChange(msg CacheChangedMsg) (tea.Model, tea.Cmd) {
	if msg.source == nil || (msg.source != m.tabChanges && msg.source != m.markChanges) {
		return m, nil
	}
	if msg.Snapshot.Status == query.StatusIdle {
		return m, tea.Batch(m.loadActive(), m.watchTab(), LoadMarksCmd(m.Stories), m.watchMarks())
	}

	var cmds []tea.Cmd
	if msg.source == m.tabChanges {
		if msg.Snapshot.Stale {
			cmds = append(cmds, m.loadActive())
		}
		cmds = append(cmds, WaitForCacheCmd(m.tabChanges))
	} else {
		if msg.Snapshot.Stale {
			cmds = append(cmds, LoadMarksCmd(m.Stories))
		}
		cmds = append(cmds, WaitForCacheCmd(m.markChanges))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.statusMsg = text
	m.statusIsErr = isErr
}

func (m *Model) updateLayout() {
	h := m.height - chromeHeight - miniPlayerHeight
	for i := range m.lists {
		m.lists[i].SetSize(m.width, max(h, 1))
	}
}

func nextCategory(c domain.Category) domain.Category {
	all := domain.AllCategories()
	if c == "" {
		return all[0]
	}
	for i, cat := range all {
		if cat == c && i+1 < len(all) {
			return all[i+1]
		}
	}
	return ""
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// View renders the application
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	bodyHeight := max(m.height-chromeHeight-miniPlayerHeight, 1)
	var body string
	switch {
	case m.searchBox.IsVisible():
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.searchBox.View())
	case m.showHelp:
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderHelp())
	case m.fullPlayer:
		marks := components.PlayerMarks{}
		if m.playback.Story != nil {
			marks.Liked = m.liked[m.playback.Story.ID]
			marks.Saved = m.saved[m.playback.Story.ID]
		}
		body = components.RenderFullPlayer(m.playback, marks, m.width, bodyHeight)
	default:
		body = m.lists[m.active].View()
	}

	mini := components.RenderMiniPlayer(m.playback, m.width)
	if mini == "" || m.fullPlayer {
		mini = strings.Repeat("\n", miniPlayerHeight-1)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTabs(),
		body,
		mini,
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	who := styles.DimStyle.Render("not signed in")
	if m.Session != nil {
		if id, ok := m.Session.Identity(); ok {
			name := id.Username
			if name == "" {
				name = id.Principal
			}
			who = styles.SubtitleStyle.Render(name)
		}
	}
	title := styles.AccentStyle.Bold(true).Render("storywave")
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(who), 1)
	return title + strings.Repeat(" ", gap) + who
}

func (m Model) renderTabs() string {
	var tabs []string
	for t := Tab(0); t < tabCount; t++ {
		if t == TabSearch && m.searchTerm == "" {
			continue
		}
		label := t.Title()
		if t == TabAll && m.category != "" {
			label = "All · " + m.category.Label()
		}
		if t == TabSearch {
			label = fmt.Sprintf("Search %q", styles.Truncate(m.searchTerm, 16))
		}
		if t == m.active {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		if m.statusIsErr {
			return styles.ErrorStyle.Render(styles.Truncate(m.statusMsg, m.width))
		}
		return styles.SuccessStyle.Render(styles.Truncate(m.statusMsg, m.width))
	}
	var parts []string
	used := 0
	for _, b := range m.keys.ShortHelp() {
		w := lipgloss.Width(b.Help().Key) + lipgloss.Width(b.Help().Desc) + 3
		if used+w > m.width {
			break
		}
		used += w
		parts = append(parts, styles.HelpKeyStyle.Render(b.Help().Key)+" "+styles.HelpDescStyle.Render(b.Help().Desc))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	var cols []string
	for _, group := range m.keys.FullHelp() {
		var lines []string
		for _, b := range group {
			lines = append(lines, fmt.Sprintf("%s %s",
				styles.HelpKeyStyle.Render(styles.Pad(b.Help().Key, 7)),
				styles.HelpDescStyle.Render(b.Help().Desc)))
		}
		cols = append(cols, lipgloss.NewStyle().PaddingRight(3).Render(strings.Join(lines, "\n")))
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render("Keys"),
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
	)
	return styles.ModalStyle.Render(content)
}
