package service

import (
	"strconv"
	"strings"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// Cache key families. Every cached read belongs to exactly one family; the
// invalidation table refers to families, never to individual keys.
const (
	// FamilyAllStories is the full published list (allStories)
	FamilyAllStories = "allStories"

	// FamilyTrendingStories is keyed by limit (trendingStories:{limit})
	FamilyTrendingStories = "trendingStories"

	// FamilyStoriesByCategory is keyed by category (storiesByCategory:{category})
	FamilyStoriesByCategory = "storiesByCategory"

	// FamilySearchStories is keyed by trimmed term (searchStories:{term})
	FamilySearchStories = "searchStories"

	// FamilyUserStories is keyed by creator principal (userStories:{principal})
	FamilyUserStories = "userStories"

	// FamilyUserLikedStories is keyed by principal (userLikedStories:{principal})
	FamilyUserLikedStories = "userLikedStories"

	// FamilyUserSavedStories is keyed by principal (userSavedStories:{principal})
	FamilyUserSavedStories = "userSavedStories"

	// FamilyCurrentUserProfile is the caller's own profile
	FamilyCurrentUserProfile = "currentUserProfile"

	// FamilyUserProfile is keyed by principal (userProfile:{principal})
	FamilyUserProfile = "userProfile"

	// FamilyDraftStory is the caller's latest generated draft
	FamilyDraftStory = "draftStory"
)

func allStoriesKey() query.Key { return query.NewKey(FamilyAllStories) }

func trendingKey(limit int) query.Key {
	return query.NewKey(FamilyTrendingStories, strconv.Itoa(limit))
}

func categoryKey(c domain.Category) query.Key {
	return query.NewKey(FamilyStoriesByCategory, string(c))
}

func searchKey(term string) query.Key { return query.NewKey(FamilySearchStories, term) }

func userStoriesKey(principal string) query.Key {
	return query.NewKey(FamilyUserStories, principal)
}

func userLikedKey(principal string) query.Key {
	return query.NewKey(FamilyUserLikedStories, principal)
}

func userSavedKey(principal string) query.Key {
	return query.NewKey(FamilyUserSavedStories, principal)
}

// Caller-scoped families still carry the principal in the key
func currentProfileKey(principal string) query.Key {
	return query.NewKey(FamilyCurrentUserProfile, principal)
}

func userProfileKey(principal string) query.Key {
	return query.NewKey(FamilyUserProfile, principal)
}

func draftKey(principal string) query.Key { return query.NewKey(FamilyDraftStory, principal) }

// The Key methods name the cache entries behind each read so callers can
// subscribe to them. Caller-scoped keys follow the current identity.

// AllStoriesKey backs AllStories, SavedStories and RecentlyPlayed
func (s *StoryService) AllStoriesKey() query.Key { return allStoriesKey() }

// TrendingKey backs Trending. limit <= 0 uses the configured default.
func (s *StoryService) TrendingKey(limit int) query.Key {
	if limit <= 0 {
		limit = s.trendingLimit
	}
	return trendingKey(limit)
}

func (s *StoryService) CategoryKey(c domain.Category) query.Key { return categoryKey(c) }

func (s *StoryService) SearchKey(term string) query.Key {
	return searchKey(strings.TrimSpace(term))
}

func (s *StoryService) MyStoriesKey() query.Key {
	id, _ := s.session.Identity()
	return userStoriesKey(id.Principal)
}

func (s *StoryService) LikedKey() query.Key {
	id, _ := s.session.Identity()
	return userLikedKey(id.Principal)
}

func (s *StoryService) SavedKey() query.Key {
	id, _ := s.session.Identity()
	return userSavedKey(id.Principal)
}
