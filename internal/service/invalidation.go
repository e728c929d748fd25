package service

// Mutation names a remote write
type Mutation string

const (
	MutationSaveStory         Mutation = "saveStory"
	MutationSaveAudio         Mutation = "saveAudio"
	MutationLikeStory         Mutation = "likeStory"
	MutationUnlikeStory       Mutation = "unlikeStory"
	MutationSaveToLibrary     Mutation = "saveToLibrary"
	MutationUnsaveFromLibrary Mutation = "unsaveFromLibrary"
	MutationSaveProfile       Mutation = "saveProfile"
	MutationGenerateDraft     Mutation = "generateDraft"
	MutationIncrementViews    Mutation = "incrementViews"
)

// storyListFamilies are every read that renders story records
var storyListFamilies = []string{
	FamilyAllStories,
	FamilyUserStories,
	FamilyTrendingStories,
	FamilyStoriesByCategory,
	FamilySearchStories,
	FamilyUserSavedStories,
}

// invalidations maps each write to the families whose cached reads may now
// be out of date. Like counts and the viewer's saved flag live on story
// records, so like and library writes reach every story list.
var invalidations = map[Mutation][]string{
	MutationSaveStory: storyListFamilies,
	MutationSaveAudio: storyListFamilies,
	MutationLikeStory: {
		FamilyAllStories, FamilyTrendingStories, FamilyUserLikedStories,
		FamilyStoriesByCategory, FamilySearchStories, FamilyUserStories,
		FamilyUserSavedStories,
	},
	MutationUnlikeStory: {
		FamilyAllStories, FamilyTrendingStories, FamilyUserLikedStories,
		FamilyStoriesByCategory, FamilySearchStories, FamilyUserStories,
		FamilyUserSavedStories,
	},
	MutationSaveToLibrary:     storyListFamilies,
	MutationUnsaveFromLibrary: storyListFamilies,
	MutationSaveProfile:       {FamilyCurrentUserProfile, FamilyUserProfile},
	MutationGenerateDraft:     {FamilyDraftStory},
	MutationIncrementViews:    nil, // View counts are allowed to lag
}

// Invalidations returns the families a successful m invalidates. Unknown
// mutations invalidate nothing.
func Invalidations(m Mutation) []string {
	families := invalidations[m]
	out := make([]string, len(families))
	copy(out, families)
	return out
}

// Mutations returns every known mutation
func Mutations() []Mutation {
	return []Mutation{
		MutationSaveStory, MutationSaveAudio,
		MutationLikeStory, MutationUnlikeStory,
		MutationSaveToLibrary, MutationUnsaveFromLibrary,
		MutationSaveProfile, MutationGenerateDraft,
		MutationIncrementViews,
	}
}
