package domain

import (
	"context"
)

// StoryQueries are the read operations of the remote story service
type StoryQueries interface {
	// ListStories returns every published story
	ListStories(ctx context.Context) ([]Story, error)

	// ListTrending returns at most limit stories ordered by popularity
	ListTrending(ctx context.Context, limit int) ([]Story, error)

	// ListByCategory returns published stories of one category
	ListByCategory(ctx context.Context, category Category) ([]Story, error)

	// SearchStories returns stories whose text matches term
	SearchStories(ctx context.Context, term string) ([]Story, error)

	// ListUserStories returns the stories created by principal
	ListUserStories(ctx context.Context, principal string) ([]Story, error)

	// ListUserLikedIDs returns the IDs of stories principal has liked
	ListUserLikedIDs(ctx context.Context, principal string) ([]string, error)

	// ListUserSavedIDs returns the IDs in principal's library, most recent first
	ListUserSavedIDs(ctx context.Context, principal string) ([]string, error)

	// GetCallerProfile returns the signed-in caller's profile, absent when
	// the caller has not onboarded yet
	GetCallerProfile(ctx context.Context) (Option[UserProfile], error)

	// GetUserProfile returns principal's profile
	GetUserProfile(ctx context.Context, principal string) (Option[UserProfile], error)

	// GetDraftStory returns the caller's most recent generated draft
	GetDraftStory(ctx context.Context) (Option[StoryDraft], error)
}

// StoryCommands are the write operations of the remote story service
type StoryCommands interface {
	SaveStory(ctx context.Context, story Story) error

	// SaveAudio uploads the audio for storyID, reporting bytes sent
	SaveAudio(ctx context.Context, storyID string, audio []byte, progress ProgressFunc) error

	LikeStory(ctx context.Context, storyID string) error
	UnlikeStory(ctx context.Context, storyID string) error
	SaveToLibrary(ctx context.Context, storyID string) error
	UnsaveFromLibrary(ctx context.Context, storyID string) error
	IncrementViews(ctx context.Context, storyID string) error
	SaveProfile(ctx context.Context, profile UserProfile) error
	GenerateDraft(ctx context.Context, req DraftRequest) error
}

// RemoteService is a client bound to one identity (or anonymous)
type RemoteService interface {
	StoryQueries
	StoryCommands

	// ResolveAudioURL turns a stored audio reference into a playable URL
	ResolveAudioURL(ctx context.Context, ref string) (string, error)
}

// Identity is the signed-in principal and its bearer token
type Identity struct {
	Principal string
	Username  string
	Token     string
}

// Anonymous returns true if there is no principal
func (i Identity) Anonymous() bool {
	return i.Principal == ""
}

// IdentityProvider is the opaque authentication collaborator
type IdentityProvider interface {
	// Current returns the active identity, if any
	Current() (Identity, bool)

	// Login runs the provider's sign-in flow. Returns ErrAlreadyAuthenticated
	// when a session is still active on the provider side.
	Login(ctx context.Context) (Identity, error)

	// Logout ends the provider-side session
	Logout(ctx context.Context) error
}
