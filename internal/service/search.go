package service

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/storywave/internal/domain"
)

// RankStories orders search results by how well their title matches term.
// The sort is stable so equal scores keep the server's order.
func RankStories(stories []domain.Story, term string) []domain.Story {
	if len(stories) == 0 || term == "" {
		return stories
	}

	q := strings.ToLower(strings.TrimSpace(term))

	type rankedStory struct {
		story domain.Story
		score int
	}

	ranked := make([]rankedStory, len(stories))
	for i, st := range stories {
		ranked[i] = rankedStory{story: st, score: matchScore(st, q)}
	}

	// Sort by score (lower is better)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	out := make([]domain.Story, len(ranked))
	for i, r := range ranked {
		out[i] = r.story
	}
	return out
}

// matchScore calculates a match score for ranking
// Lower score = better match
func matchScore(st domain.Story, q string) int {
	title := strings.ToLower(st.Title)

	switch {
	case title == q:
		return 0
	case strings.HasPrefix(title, q):
		return 10
	case strings.Contains(title, q):
		return 50
	case fuzzy.MatchFold(q, title):
		return 75 + fuzzy.RankMatchFold(q, title)
	case strings.Contains(strings.ToLower(st.Description), q):
		return 150
	}

	// Fuzzy distance
	return 200 + fuzzy.LevenshteinDistance(q, title)
}
