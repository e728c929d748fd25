package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// GenerateDraft asks the remote generator for a new draft and returns its ID.
// The result is read back with Draft.
func (s *StoryService) GenerateDraft(ctx context.Context, genre, tone, prompt string) (string, error) {
	if _, err := s.requireIdentity(); err != nil {
		return "", err
	}
	req := domain.DraftRequest{
		ID:     uuid.NewString(),
		Genre:  strings.TrimSpace(genre),
		Tone:   strings.TrimSpace(tone),
		Prompt: strings.TrimSpace(prompt),
	}
	err := s.mutate(ctx, MutationGenerateDraft, func(ctx context.Context, c domain.RemoteService) error {
		return c.GenerateDraft(ctx, req)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("draft requested", "draftID", req.ID, "genre", req.Genre)
	return req.ID, nil
}

// Draft returns the caller's latest draft, absent when there is none
func (s *StoryService) Draft(ctx context.Context) (domain.Option[domain.StoryDraft], error) {
	id, ok := s.session.Identity()
	_, ready := s.session.Client()
	return query.Get(ctx, s.cache, draftKey(id.Principal), func(ctx context.Context) (domain.Option[domain.StoryDraft], error) {
		client, err := s.remote(id.Principal)
		if err != nil {
			return domain.None[domain.StoryDraft](), err
		}
		return client.GetDraftStory(ctx)
	}, query.ReadOptions{Disabled: !ok || !ready})
}
