package service

import (
	"context"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// CallerProfile returns the signed-in caller's profile. Absent when signed
// out or not yet onboarded.
func (s *StoryService) CallerProfile(ctx context.Context) (domain.Option[domain.UserProfile], error) {
	id, ok := s.session.Identity()
	_, ready := s.session.Client()
	return query.Get(ctx, s.cache, currentProfileKey(id.Principal), func(ctx context.Context) (domain.Option[domain.UserProfile], error) {
		client, err := s.remote(id.Principal)
		if err != nil {
			return domain.None[domain.UserProfile](), err
		}
		return client.GetCallerProfile(ctx)
	}, query.ReadOptions{Disabled: !ok || !ready})
}

// UserProfile returns principal's profile
func (s *StoryService) UserProfile(ctx context.Context, principal string) (domain.Option[domain.UserProfile], error) {
	_, ready := s.session.Client()
	return query.Get(ctx, s.cache, userProfileKey(principal), func(ctx context.Context) (domain.Option[domain.UserProfile], error) {
		client, err := s.remote("")
		if err != nil {
			return domain.None[domain.UserProfile](), err
		}
		return client.GetUserProfile(ctx, principal)
	}, query.ReadOptions{Disabled: !ready || principal == ""})
}

// NeedsOnboarding returns true when a signed-in caller has no profile yet
func (s *StoryService) NeedsOnboarding(ctx context.Context) (bool, error) {
	if _, ok := s.session.Identity(); !ok {
		return false, nil
	}
	p, err := s.CallerProfile(ctx)
	if err != nil {
		return false, err
	}
	return !p.IsSome(), nil
}

// SaveProfile normalizes and stores the caller's profile
func (s *StoryService) SaveProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if _, err := s.requireIdentity(); err != nil {
		return domain.UserProfile{}, err
	}
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return domain.UserProfile{}, err
	}
	err := s.mutate(ctx, MutationSaveProfile, func(ctx context.Context, c domain.RemoteService) error {
		return c.SaveProfile(ctx, profile)
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}
