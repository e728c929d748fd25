package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// DefaultTrendingLimit is used when the caller passes no limit
const DefaultTrendingLimit = 10

// AnonymousCreator is the creator name used when the caller has no profile
const AnonymousCreator = "Anonymous"

// RecentList is the locally persisted recently-played list
type RecentList interface {
	List() []string
}

// StoryService reads stories and profiles through the query cache and
// applies writes through the invalidation table
type StoryService struct {
	session       *Session
	cache         *query.Cache
	recent        RecentList
	logger        *slog.Logger
	trendingLimit int
}

// NewStoryService creates a new story service
func NewStoryService(session *Session, cache *query.Cache, recent RecentList, logger *slog.Logger) *StoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoryService{
		session:       session,
		cache:         cache,
		recent:        recent,
		logger:        logger,
		trendingLimit: DefaultTrendingLimit,
	}
}

// SetTrendingLimit changes the default trending list size
func (s *StoryService) SetTrendingLimit(n int) {
	if n > 0 {
		s.trendingLimit = n
	}
}

// Cache returns the query cache the service reads through
func (s *StoryService) Cache() *query.Cache {
	return s.cache
}

// Refresh marks every story list and the caller's liked and saved IDs
// stale. Failed reads retry on their next access.
func (s *StoryService) Refresh() int {
	families := append(slices.Clone(storyListFamilies), FamilyUserLikedStories)
	return s.cache.Invalidate(families...)
}

// === Reads ===

// remote resolves the client when a fetch starts, not when the read was
// requested, so a read racing a login or logout never runs on the previous
// binding. principal is the caller a caller-scoped key was built for; a
// different caller now being signed in fails the fetch with
// ErrLoginSuperseded. Shared reads pass "".
func (s *StoryService) remote(principal string) (domain.RemoteService, error) {
	client, id, authenticated := s.session.current()
	if client == nil {
		return nil, domain.ErrNotReady
	}
	if principal != "" && (!authenticated || id.Principal != principal) {
		return nil, domain.ErrLoginSuperseded
	}
	return client, nil
}

// readStories runs a shared story-list read. The read is disabled (returns
// an empty list, no entry) when no client is bound or enabled is false.
func (s *StoryService) readStories(ctx context.Context, key query.Key, enabled bool, fetch func(context.Context, domain.RemoteService) ([]domain.Story, error)) ([]domain.Story, error) {
	_, ready := s.session.Client()
	return query.Get(ctx, s.cache, key, func(ctx context.Context) ([]domain.Story, error) {
		client, err := s.remote("")
		if err != nil {
			return nil, err
		}
		return fetch(ctx, client)
	}, query.ReadOptions{Disabled: !ready || !enabled, Default: []domain.Story{}})
}

// readIDs runs an ID-list read scoped to the signed-in caller
func (s *StoryService) readIDs(ctx context.Context, key query.Key, principal string, enabled bool, fetch func(context.Context, domain.RemoteService) ([]string, error)) ([]string, error) {
	_, ready := s.session.Client()
	return query.Get(ctx, s.cache, key, func(ctx context.Context) ([]string, error) {
		client, err := s.remote(principal)
		if err != nil {
			return nil, err
		}
		return fetch(ctx, client)
	}, query.ReadOptions{Disabled: !ready || !enabled, Default: []string{}})
}

// AllStories returns every published story
func (s *StoryService) AllStories(ctx context.Context) ([]domain.Story, error) {
	return s.readStories(ctx, allStoriesKey(), true, func(ctx context.Context, c domain.RemoteService) ([]domain.Story, error) {
		return c.ListStories(ctx)
	})
}

// Trending returns the most popular stories. limit <= 0 uses the configured default.
func (s *StoryService) Trending(ctx context.Context, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = s.trendingLimit
	}
	return s.readStories(ctx, trendingKey(limit), true, func(ctx context.Context, c domain.RemoteService) ([]domain.Story, error) {
		return c.ListTrending(ctx, limit)
	})
}

// ByCategory returns the stories of one category. An empty category is a
// disabled read.
func (s *StoryService) ByCategory(ctx context.Context, category domain.Category) ([]domain.Story, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	return s.readStories(ctx, categoryKey(category), category != "", func(ctx context.Context, c domain.RemoteService) ([]domain.Story, error) {
		return c.ListByCategory(ctx, category)
	})
}

// Search returns stories matching term, best match first. The term is
// trimmed; an empty term is a disabled read.
func (s *StoryService) Search(ctx context.Context, term string) ([]domain.Story, error) {
	term = strings.TrimSpace(term)
	results, err := s.readStories(ctx, searchKey(term), term != "", func(ctx context.Context, c domain.RemoteService) ([]domain.Story, error) {
		return c.SearchStories(ctx, term)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search complete", "term", term, "results", len(results))
	return RankStories(results, term), nil
}

// UserStories returns the stories created by principal
func (s *StoryService) UserStories(ctx context.Context, principal string) ([]domain.Story, error) {
	return s.readStories(ctx, userStoriesKey(principal), principal != "", func(ctx context.Context, c domain.RemoteService) ([]domain.Story, error) {
		return c.ListUserStories(ctx, principal)
	})
}

// MyStories returns the caller's own stories, empty when signed out
func (s *StoryService) MyStories(ctx context.Context) ([]domain.Story, error) {
	id, _ := s.session.Identity()
	return s.UserStories(ctx, id.Principal)
}

// LikedIDs returns the IDs of stories the caller has liked
func (s *StoryService) LikedIDs(ctx context.Context) ([]string, error) {
	id, ok := s.session.Identity()
	return s.readIDs(ctx, userLikedKey(id.Principal), id.Principal, ok, func(ctx context.Context, c domain.RemoteService) ([]string, error) {
		return c.ListUserLikedIDs(ctx, id.Principal)
	})
}

// SavedIDs returns the IDs in the caller's library
func (s *StoryService) SavedIDs(ctx context.Context) ([]string, error) {
	id, ok := s.session.Identity()
	return s.readIDs(ctx, userSavedKey(id.Principal), id.Principal, ok, func(ctx context.Context, c domain.RemoteService) ([]string, error) {
		return c.ListUserSavedIDs(ctx, id.Principal)
	})
}

// SavedStories returns the caller's library in saved order. Saved IDs are
// joined with the all-stories list; IDs without a published story are dropped.
func (s *StoryService) SavedStories(ctx context.Context) ([]domain.Story, error) {
	ids, err := s.SavedIDs(ctx)
	if err != nil || len(ids) == 0 {
		return []domain.Story{}, err
	}
	all, err := s.AllStories(ctx)
	if err != nil {
		return nil, err
	}
	return pickStories(all, ids), nil
}

// RecentlyPlayed returns the locally remembered stories, most recent first.
// IDs no longer in the all-stories list are skipped.
func (s *StoryService) RecentlyPlayed(ctx context.Context) ([]domain.Story, error) {
	if s.recent == nil {
		return []domain.Story{}, nil
	}
	ids := s.recent.List()
	if len(ids) == 0 {
		return []domain.Story{}, nil
	}
	all, err := s.AllStories(ctx)
	if err != nil {
		return nil, err
	}
	return pickStories(all, ids), nil
}

// IsLiked reports whether the caller has liked storyID
func (s *StoryService) IsLiked(ctx context.Context, storyID string) (bool, error) {
	ids, err := s.LikedIDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, storyID), nil
}

// IsSaved reports whether storyID is in the caller's library
func (s *StoryService) IsSaved(ctx context.Context, storyID string) (bool, error) {
	ids, err := s.SavedIDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, storyID), nil
}

// FindStory looks storyID up in the all-stories list
func (s *StoryService) FindStory(ctx context.Context, storyID string) (domain.Story, error) {
	all, err := s.AllStories(ctx)
	if err != nil {
		return domain.Story{}, err
	}
	for _, st := range all {
		if st.ID == storyID {
			return st, nil
		}
	}
	return domain.Story{}, fmt.Errorf("story %s: %w", storyID, domain.ErrNotFound)
}

// pickStories returns the stories with the given IDs in ids order
func pickStories(all []domain.Story, ids []string) []domain.Story {
	byID := make(map[string]domain.Story, len(all))
	for _, st := range all {
		byID[st.ID] = st
	}
	out := make([]domain.Story, 0, len(ids))
	for _, id := range ids {
		if st, ok := byID[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

// === Writes ===

// mutate runs a remote write and, on success, invalidates every family the
// write affects. Writes are never retried.
func (s *StoryService) mutate(ctx context.Context, m Mutation, call func(context.Context, domain.RemoteService) error) error {
	client, ok := s.session.Client()
	if !ok {
		return fmt.Errorf("%s: %w", m, domain.ErrNotReady)
	}
	if err := call(ctx, client); err != nil {
		s.logger.Warn("mutation failed", "mutation", m, "error", err)
		return fmt.Errorf("%s: %w", m, err)
	}
	n := s.cache.Invalidate(Invalidations(m)...)
	s.logger.Debug("mutation applied", "mutation", m, "invalidated", n)
	return nil
}

// requireIdentity returns the caller or ErrNotAuthenticated
func (s *StoryService) requireIdentity() (domain.Identity, error) {
	id, ok := s.session.Identity()
	if !ok {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	return id, nil
}

func (s *StoryService) Like(ctx context.Context, storyID string) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	return s.mutate(ctx, MutationLikeStory, func(ctx context.Context, c domain.RemoteService) error {
		return c.LikeStory(ctx, storyID)
	})
}

func (s *StoryService) Unlike(ctx context.Context, storyID string) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	return s.mutate(ctx, MutationUnlikeStory, func(ctx context.Context, c domain.RemoteService) error {
		return c.UnlikeStory(ctx, storyID)
	})
}

// ToggleLike likes or unlikes storyID based on the cached liked IDs and
// returns the new state
func (s *StoryService) ToggleLike(ctx context.Context, storyID string) (bool, error) {
	liked, err := s.IsLiked(ctx, storyID)
	if err != nil {
		return false, err
	}
	if liked {
		return false, s.Unlike(ctx, storyID)
	}
	return true, s.Like(ctx, storyID)
}

func (s *StoryService) Save(ctx context.Context, storyID string) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	return s.mutate(ctx, MutationSaveToLibrary, func(ctx context.Context, c domain.RemoteService) error {
		return c.SaveToLibrary(ctx, storyID)
	})
}

func (s *StoryService) Unsave(ctx context.Context, storyID string) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	return s.mutate(ctx, MutationUnsaveFromLibrary, func(ctx context.Context, c domain.RemoteService) error {
		return c.UnsaveFromLibrary(ctx, storyID)
	})
}

// ToggleSave adds or removes storyID from the caller's library and
// returns the new state
func (s *StoryService) ToggleSave(ctx context.Context, storyID string) (bool, error) {
	saved, err := s.IsSaved(ctx, storyID)
	if err != nil {
		return false, err
	}
	if saved {
		return false, s.Unsave(ctx, storyID)
	}
	return true, s.Save(ctx, storyID)
}

// IncrementViews bumps the remote view count. Nothing is invalidated.
func (s *StoryService) IncrementViews(ctx context.Context, storyID string) error {
	return s.mutate(ctx, MutationIncrementViews, func(ctx context.Context, c domain.RemoteService) error {
		return c.IncrementViews(ctx, storyID)
	})
}

// ResolveAudioURL turns a story's audio reference into a playable URL
func (s *StoryService) ResolveAudioURL(ctx context.Context, ref string) (string, error) {
	client, ok := s.session.Client()
	if !ok {
		return "", domain.ErrNotReady
	}
	return client.ResolveAudioURL(ctx, ref)
}

// PublishRequest is the input for Publish
type PublishRequest struct {
	Title         string
	Description   string
	Category      domain.Category
	CoverImageURL string
	Audio         []byte // Optional; uploaded after the metadata is saved
}

// Publish creates a new story owned by the caller, then uploads its audio.
// The creator name comes from the caller's profile.
func (s *StoryService) Publish(ctx context.Context, req PublishRequest, progress domain.ProgressFunc) (domain.Story, error) {
	id, err := s.requireIdentity()
	if err != nil {
		return domain.Story{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Story{}, domain.ErrEmptyTitle
	}
	if !req.Category.Valid() {
		return domain.Story{}, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, req.Category)
	}

	creatorName := AnonymousCreator
	if profile, err := s.CallerProfile(ctx); err != nil {
		s.logger.Warn("caller profile unavailable, publishing as anonymous", "error", err)
	} else if p, ok := profile.Get(); ok && p.Username != "" {
		creatorName = p.Username
	}

	story := domain.Story{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   strings.TrimSpace(req.Description),
		Category:      req.Category,
		CreatorID:     id.Principal,
		CreatorName:   creatorName,
		CoverImageURL: strings.TrimSpace(req.CoverImageURL),
		Published:     true,
	}

	err = s.mutate(ctx, MutationSaveStory, func(ctx context.Context, c domain.RemoteService) error {
		return c.SaveStory(ctx, story)
	})
	if err != nil {
		return domain.Story{}, err
	}
	s.logger.Info("story published", "storyID", story.ID, "category", story.Category)

	if len(req.Audio) == 0 {
		return story, nil
	}
	err = s.mutate(ctx, MutationSaveAudio, func(ctx context.Context, c domain.RemoteService) error {
		return c.SaveAudio(ctx, story.ID, req.Audio, progress)
	})
	if err != nil {
		return story, err
	}
	return story, nil
}
