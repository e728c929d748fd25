package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
	"github.com/mmcdole/storywave/internal/service"
)

const requestTimeout = 30 * time.Second

// Command factories for async operations

// LoadTabCmd reads the stories for tab through the query cache
func LoadTabCmd(svc *service.StoryService, tab Tab, category domain.Category, term string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var stories []domain.Story
		var err error
		switch tab {
		case TabAll:
			if category == "" {
				stories, err = svc.AllStories(ctx)
			} else {
				stories, err = svc.ByCategory(ctx, category)
			}
		case TabTrending:
			stories, err = svc.Trending(ctx, 0)
		case TabSaved:
			stories, err = svc.SavedStories(ctx)
		case TabRecent:
			stories, err = svc.RecentlyPlayed(ctx)
		case TabMine:
			stories, err = svc.MyStories(ctx)
		case TabSearch:
			stories, err = svc.Search(ctx, term)
		}
		return StoriesLoadedMsg{Tab: tab, Stories: stories, Err: err}
	}
}

// LoadMarksCmd reads the caller's liked and saved IDs. Failures show as
// unmarked rows.
func LoadMarksCmd(svc *service.StoryService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		liked, _ := svc.LikedIDs(ctx)
		saved, _ := svc.SavedIDs(ctx)
		return MarksLoadedMsg{Liked: liked, Saved: saved}
	}
}

// ToggleLikeCmd likes or unlikes storyID
func ToggleLikeCmd(svc *service.StoryService, story domain.Story) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		liked, err := svc.ToggleLike(ctx, story.ID)
		if err != nil {
			return ActionDoneMsg{Err: ErrMsg{Err: err, Context: "like"}}
		}
		if liked {
			return ActionDoneMsg{Status: "Liked " + story.Title}
		}
		return ActionDoneMsg{Status: "Unliked " + story.Title}
	}
}

// ToggleSaveCmd adds storyID to or removes it from the library
func ToggleSaveCmd(svc *service.StoryService, story domain.Story) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		saved, err := svc.ToggleSave(ctx, story.ID)
		if err != nil {
			return ActionDoneMsg{Err: ErrMsg{Err: err, Context: "save"}}
		}
		if saved {
			return ActionDoneMsg{Status: "Saved " + story.Title}
		}
		return ActionDoneMsg{Status: "Removed " + story.Title + " from library"}
	}
}

// OpenStoryCmd binds story to the player and starts it
func OpenStoryCmd(player *service.PlaybackSession, story domain.Story) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		player.Open(ctx, story)
		player.Play()
		return nil
	}
}

// WaitForPlaybackCmd blocks until the next playback state arrives
func WaitForPlaybackCmd(states <-chan service.PlaybackState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return nil
		}
		return PlaybackMsg{State: state}
	}
}

// WaitForCacheCmd blocks until the next change to a watched cache entry
func WaitForCacheCmd(changes <-chan query.Snapshot) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-changes
		if !ok {
			return nil
		}
		return CacheChangedMsg{Snapshot: snap, source: changes}
	}
}

// TickCmd schedules the next spinner frame
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}
