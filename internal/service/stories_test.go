package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

func TestReadsAreCached(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		all, err := f.stories.AllStories(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
	}
	require.Equal(t, 1, f.remote.count("ListStories"))
}

func TestTrendingDefaultLimit(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()

	_, err := f.stories.Trending(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, query.StatusSuccess, f.cache.Peek(trendingKey(DefaultTrendingLimit)).Status)

	f.stories.SetTrendingLimit(2)
	top, err := f.stories.Trending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
}

func TestByCategory(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	horror, err := f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.NoError(t, err)
	require.Len(t, horror, 1)
	require.Equal(t, "s1", horror[0].ID)

	none, err := f.stories.ByCategory(ctx, "")
	require.NoError(t, err)
	require.Empty(t, none)
	require.Equal(t, 1, f.remote.count("ListByCategory"))

	_, err = f.stories.ByCategory(ctx, "western")
	require.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestSearchTrimsAndSkipsEmptyTerm(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	res, err := f.stories.Search(ctx, "   ")
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, 0, f.remote.count("SearchStories"))

	res, err = f.stories.Search(ctx, "  stars ")
	require.NoError(t, err)
	require.Equal(t, "s2", res[0].ID)

	_, err = f.stories.Search(ctx, "stars")
	require.NoError(t, err)
	require.Equal(t, 1, f.remote.count("SearchStories"), "trimmed terms share a key")
}

func TestReadErrorSurfacesUntilInvalidated(t *testing.T) {
	f := newFixture("p1")
	f.remote.readErr = domain.ErrServerOffline
	ctx := context.Background()

	_, err := f.stories.AllStories(ctx)
	require.ErrorIs(t, err, domain.ErrServerOffline)

	f.remote.mu.Lock()
	f.remote.readErr = nil
	f.remote.stories = sampleStories()
	f.remote.mu.Unlock()

	_, err = f.stories.AllStories(ctx)
	require.ErrorIs(t, err, domain.ErrServerOffline, "no automatic retry")

	require.NoError(t, f.stories.Like(ctx, "s1"))
	all, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestUserListsRequireIdentity(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()

	liked, err := f.stories.LikedIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, liked)

	saved, err := f.stories.SavedStories(ctx)
	require.NoError(t, err)
	require.Empty(t, saved)

	mine, err := f.stories.MyStories(ctx)
	require.NoError(t, err)
	require.Empty(t, mine)

	require.Equal(t, 0, f.remote.count("ListUserLikedIDs"))
	require.Equal(t, 0, f.remote.count("ListUserSavedIDs"))
	require.Equal(t, 0, f.remote.count("ListUserStories"))

	require.ErrorIs(t, f.stories.Like(ctx, "s1"), domain.ErrNotAuthenticated)
	require.ErrorIs(t, f.stories.Save(ctx, "s1"), domain.ErrNotAuthenticated)
	_, err = f.stories.SaveProfile(ctx, domain.UserProfile{Username: "x"})
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestLikeRefreshesEveryStoryList(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	// Warm every list that shows like counts
	_, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	_, err = f.stories.Trending(ctx, 0)
	require.NoError(t, err)
	_, err = f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.NoError(t, err)
	_, err = f.stories.Search(ctx, "night")
	require.NoError(t, err)
	_, err = f.stories.MyStories(ctx)
	require.NoError(t, err)
	liked, err := f.stories.LikedIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, liked)

	now, err := f.stories.ToggleLike(ctx, "s1")
	require.NoError(t, err)
	require.True(t, now)

	likeCount := func(list []domain.Story) uint64 {
		for _, st := range list {
			if st.ID == "s1" {
				return st.LikeCount
			}
		}
		t.Fatalf("s1 missing")
		return 0
	}

	all, _ := f.stories.AllStories(ctx)
	require.Equal(t, uint64(4), likeCount(all))
	trending, _ := f.stories.Trending(ctx, 0)
	require.Equal(t, uint64(4), likeCount(trending))
	horror, _ := f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.Equal(t, uint64(4), likeCount(horror))
	found, _ := f.stories.Search(ctx, "night")
	require.Equal(t, uint64(4), likeCount(found))
	mine, _ := f.stories.MyStories(ctx)
	require.Equal(t, uint64(4), likeCount(mine))
	liked, _ = f.stories.LikedIDs(ctx)
	require.Equal(t, []string{"s1"}, liked)

	now, err = f.stories.ToggleLike(ctx, "s1")
	require.NoError(t, err)
	require.False(t, now)
	liked, _ = f.stories.LikedIDs(ctx)
	require.Empty(t, liked)
}

func TestToggleSaveRefreshesLibrary(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	saved, err := f.stories.SavedStories(ctx)
	require.NoError(t, err)
	require.Empty(t, saved)

	now, err := f.stories.ToggleSave(ctx, "s3")
	require.NoError(t, err)
	require.True(t, now)
	now, err = f.stories.ToggleSave(ctx, "s1")
	require.NoError(t, err)
	require.True(t, now)

	saved, err = f.stories.SavedStories(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	require.Equal(t, "s1", saved[0].ID, "most recently saved first")
	require.Equal(t, "s3", saved[1].ID)

	now, err = f.stories.ToggleSave(ctx, "s1")
	require.NoError(t, err)
	require.False(t, now)

	saved, err = f.stories.SavedStories(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestSaveRefreshesSavedFlagOnStoryLists(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	all, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.False(t, all[0].IsSaved)
	_, err = f.stories.Trending(ctx, 0)
	require.NoError(t, err)
	_, err = f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.NoError(t, err)

	require.NoError(t, f.stories.Save(ctx, "s1"))
	f.remote.mu.Lock()
	f.remote.stories[0].IsSaved = true
	f.remote.mu.Unlock()

	all, err = f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.True(t, all[0].IsSaved)
	require.Equal(t, 2, f.remote.count("ListStories"))

	trending, err := f.stories.Trending(ctx, 0)
	require.NoError(t, err)
	require.True(t, trending[0].IsSaved)
	horror, err := f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.NoError(t, err)
	require.True(t, horror[0].IsSaved)

	require.NoError(t, f.stories.Unsave(ctx, "s1"))
	f.remote.mu.Lock()
	f.remote.stories[0].IsSaved = false
	f.remote.mu.Unlock()

	all, err = f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.False(t, all[0].IsSaved)
}

func TestSavedStoriesDropsUnknownIDs(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	f.remote.saved["p1"] = []string{"gone", "s2"}

	saved, err := f.stories.SavedStories(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, "s2", saved[0].ID)
}

func TestFailedWriteInvalidatesNothing(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	_, err := f.stories.AllStories(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	f.remote.writeErr = boom
	err = f.stories.Like(ctx, "s1")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, f.remote.count("LikeStory"), "writes are not retried")
	require.False(t, f.cache.Peek(allStoriesKey()).Stale)
}

func TestIncrementViewsInvalidatesNothing(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	_, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.NoError(t, f.stories.IncrementViews(ctx, "s1"))
	require.False(t, f.cache.Peek(allStoriesKey()).Stale)
}

func TestRecentlyPlayedMapsHistory(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()
	f.recent.ids = []string{"s3", "missing", "s1"}

	recent, err := f.stories.RecentlyPlayed(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "s3", recent[0].ID)
	require.Equal(t, "s1", recent[1].ID)
}

func TestPublishUsesProfileName(t *testing.T) {
	f := newFixture("p1")
	f.remote.profiles["p1"] = domain.UserProfile{Username: "ana"}
	ctx := context.Background()

	_, err := f.stories.MyStories(ctx)
	require.NoError(t, err)

	var progressed []int
	story, err := f.stories.Publish(ctx, PublishRequest{
		Title:    "  New Tale ",
		Category: domain.CategoryRomance,
		Audio:    []byte("RIFF...."),
	}, func(loaded, total int) { progressed = append(progressed, loaded) })
	require.NoError(t, err)

	require.NotEmpty(t, story.ID)
	require.Equal(t, "New Tale", story.Title)
	require.Equal(t, "ana", story.CreatorName)
	require.Equal(t, "p1", story.CreatorID)
	require.True(t, story.Published)
	require.Equal(t, []int{8}, progressed)
	require.Equal(t, []byte("RIFF...."), f.remote.audio[story.ID])

	mine, err := f.stories.MyStories(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "audio/"+story.ID, mine[0].AudioRef)
}

func TestPublishFallsBackToAnonymous(t *testing.T) {
	f := newFixture("p1")

	story, err := f.stories.Publish(context.Background(), PublishRequest{
		Title:    "Untitled Thoughts",
		Category: domain.CategoryMotivation,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, AnonymousCreator, story.CreatorName)
	require.Equal(t, 0, f.remote.count("SaveAudio"))
}

func TestPublishValidates(t *testing.T) {
	f := newFixture("p1")
	ctx := context.Background()

	_, err := f.stories.Publish(ctx, PublishRequest{Title: " ", Category: domain.CategoryHorror}, nil)
	require.ErrorIs(t, err, domain.ErrEmptyTitle)

	_, err = f.stories.Publish(ctx, PublishRequest{Title: "x", Category: "western"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidCategory)
	require.Equal(t, 0, f.remote.count("SaveStory"))
}

func TestSaveProfileNormalizesAndRefreshes(t *testing.T) {
	f := newFixture("p1")
	ctx := context.Background()

	onboarding, err := f.stories.NeedsOnboarding(ctx)
	require.NoError(t, err)
	require.True(t, onboarding)

	saved, err := f.stories.SaveProfile(ctx, domain.UserProfile{Username: "  ana  ", Bio: "hello"})
	require.NoError(t, err)
	require.Equal(t, "ana", saved.Username)

	onboarding, err = f.stories.NeedsOnboarding(ctx)
	require.NoError(t, err)
	require.False(t, onboarding)

	p, err := f.stories.UserProfile(ctx, "p1")
	require.NoError(t, err)
	got, ok := p.Get()
	require.True(t, ok)
	require.Equal(t, "hello", got.Bio)

	_, err = f.stories.SaveProfile(ctx, domain.UserProfile{Username: " "})
	require.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestGenerateDraftThenRead(t *testing.T) {
	f := newFixture("p1")
	ctx := context.Background()

	d, err := f.stories.Draft(ctx)
	require.NoError(t, err)
	require.False(t, d.IsSome())

	id, err := f.stories.GenerateDraft(ctx, "horror", "dark", "a lighthouse")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	d, err = f.stories.Draft(ctx)
	require.NoError(t, err)
	draft, ok := d.Get()
	require.True(t, ok)
	require.Equal(t, id, draft.ID)
	require.Equal(t, "horror", draft.Draft.Genre)
}

func TestFindStory(t *testing.T) {
	f := newFixture("")
	f.remote.stories = sampleStories()

	st, err := f.stories.FindStory(context.Background(), "s2")
	require.NoError(t, err)
	require.Equal(t, "Stars Above", st.Title)

	_, err = f.stories.FindStory(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshRetriesFailedReads(t *testing.T) {
	f := newFixture("p1")
	f.remote.readErr = domain.ErrServerOffline
	ctx := context.Background()

	_, err := f.stories.AllStories(ctx)
	require.ErrorIs(t, err, domain.ErrServerOffline)
	_, err = f.stories.LikedIDs(ctx)
	require.ErrorIs(t, err, domain.ErrServerOffline)

	f.remote.mu.Lock()
	f.remote.readErr = nil
	f.remote.stories = sampleStories()
	f.remote.mu.Unlock()

	require.Equal(t, 2, f.stories.Refresh())

	all, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 2, f.remote.count("ListStories"))
}

func TestReadsUseClientBoundAtFetchTime(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	ctx := context.Background()

	first := f.remote
	second := newMockRemote("p2")
	second.stories = sampleStories()[:1]
	f.remote = second
	f.provider.next = domain.Identity{Principal: "p2", Token: "tok-p2"}
	_, err := f.session.Login(ctx)
	require.NoError(t, err)

	client, err := f.stories.remote("")
	require.NoError(t, err)
	require.Same(t, second, client)

	all, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Zero(t, first.count("ListStories"))
	require.Equal(t, 1, second.count("ListStories"))

	// A read scoped to the previous principal never reaches the new client
	fetched := false
	_, err = f.stories.readIDs(ctx, userLikedKey("p1"), "p1", true, func(ctx context.Context, c domain.RemoteService) ([]string, error) {
		fetched = true
		return c.ListUserLikedIDs(ctx, "p1")
	})
	require.ErrorIs(t, err, domain.ErrLoginSuperseded)
	require.False(t, fetched)

	require.NoError(t, f.session.Logout(ctx))
	_, err = f.stories.remote("p2")
	require.ErrorIs(t, err, domain.ErrLoginSuperseded)
	client, err = f.stories.remote("")
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestKeyAccessorsMatchReads(t *testing.T) {
	f := newFixture("p1")
	f.remote.stories = sampleStories()
	f.remote.liked["p1"] = []string{"s2"}
	f.remote.saved["p1"] = []string{"s1"}
	ctx := context.Background()

	_, err := f.stories.AllStories(ctx)
	require.NoError(t, err)
	_, err = f.stories.Trending(ctx, 0)
	require.NoError(t, err)
	_, err = f.stories.ByCategory(ctx, domain.CategoryHorror)
	require.NoError(t, err)
	_, err = f.stories.Search(ctx, " night ")
	require.NoError(t, err)
	_, err = f.stories.MyStories(ctx)
	require.NoError(t, err)
	_, err = f.stories.LikedIDs(ctx)
	require.NoError(t, err)
	_, err = f.stories.SavedIDs(ctx)
	require.NoError(t, err)

	for _, key := range []query.Key{
		f.stories.AllStoriesKey(),
		f.stories.TrendingKey(0),
		f.stories.CategoryKey(domain.CategoryHorror),
		f.stories.SearchKey("night"),
		f.stories.MyStoriesKey(),
		f.stories.LikedKey(),
		f.stories.SavedKey(),
	} {
		require.Equal(t, query.StatusSuccess, f.cache.Peek(key).Status, key.String())
	}

	events, unsubscribe := f.cache.Subscribe(f.stories.LikedKey(), f.stories.SavedKey())
	defer unsubscribe()
	require.NoError(t, f.stories.Like(ctx, "s1"))
	first, second := <-events, <-events
	require.True(t, first.Stale)
	require.True(t, second.Stale)
	require.ElementsMatch(t, []query.Key{f.stories.LikedKey(), f.stories.SavedKey()}, []query.Key{first.Key, second.Key})
}
