package tui

import (
	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
	"github.com/mmcdole/storywave/internal/service"
)

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// StoriesLoadedMsg carries the contents of one tab
type StoriesLoadedMsg struct {
	Tab     Tab
	Stories []domain.Story
	Err     error
}

// MarksLoadedMsg carries the caller's liked and saved IDs
type MarksLoadedMsg struct {
	Liked []string
	Saved []string
}

// PlaybackMsg carries a playback state change
type PlaybackMsg struct {
	State service.PlaybackState
}

// ActionDoneMsg reports the outcome of a write
type ActionDoneMsg struct {
	Status string
	Err    error
}

// CacheChangedMsg carries a change to a watched cache entry
type CacheChangedMsg struct {
	Snapshot query.Snapshot
	source   <-chan query.Snapshot
}

// TickMsg drives the spinner
type TickMsg struct{}
