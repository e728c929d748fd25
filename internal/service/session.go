package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// DefaultLoginRetryDelay is the pause between the forced logout and the
// second login attempt when the provider reports an existing session
const DefaultLoginRetryDelay = 300 * time.Millisecond

// ClientFactory builds a remote client for an identity. authenticated is
// false for the anonymous client.
type ClientFactory func(id domain.Identity, authenticated bool) (domain.RemoteService, error)

// Session owns the identity-scoped state: the bound remote client, the
// current identity, and the lifetime of the query cache contents.
type Session struct {
	provider   domain.IdentityProvider
	newClient  ClientFactory
	cache      *query.Cache
	logger     *slog.Logger
	retryDelay time.Duration

	mu            sync.RWMutex
	client        domain.RemoteService
	identity      domain.Identity
	authenticated bool
	loginSeq      uint64
}

// NewSession creates a session. Call Start before use.
func NewSession(provider domain.IdentityProvider, newClient ClientFactory, cache *query.Cache, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		provider:   provider,
		newClient:  newClient,
		cache:      cache,
		logger:     logger,
		retryDelay: DefaultLoginRetryDelay,
	}
}

// SetLoginRetryDelay overrides DefaultLoginRetryDelay
func (s *Session) SetLoginRetryDelay(d time.Duration) {
	s.retryDelay = d
}

// Start binds a client for the provider's current identity, or the
// anonymous client when there is none
func (s *Session) Start() error {
	id, ok := s.provider.Current()
	client, err := s.newClient(id, ok)
	if err != nil {
		s.logger.Warn("remote client unavailable", "error", err)
		return fmt.Errorf("create remote client: %w", err)
	}

	s.mu.Lock()
	s.bindLocked(client, id, ok)
	s.mu.Unlock()

	s.logger.Info("session started", "authenticated", ok, "principal", id.Principal)
	return nil
}

// Client returns the bound remote client. ok is false while no client is
// bound (before Start, after Close, or when construction failed).
func (s *Session) Client() (domain.RemoteService, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.client != nil
}

// current returns the bound client and identity read under one lock
func (s *Session) current() (domain.RemoteService, domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.identity, s.authenticated
}

// Identity returns the signed-in identity, ok is false when anonymous
func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.authenticated
}

// Login signs in through the provider. If the provider still holds a
// session it is logged out and the login retried once. A login that
// finishes after a newer Login or Logout began returns ErrLoginSuperseded
// and changes nothing.
func (s *Session) Login(ctx context.Context) (domain.Identity, error) {
	s.mu.Lock()
	s.loginSeq++
	seq := s.loginSeq
	s.mu.Unlock()

	id, err := s.provider.Login(ctx)
	if errors.Is(err, domain.ErrAlreadyAuthenticated) {
		s.logger.Info("provider session already active, logging out and retrying")
		if lerr := s.provider.Logout(ctx); lerr != nil {
			return domain.Identity{}, fmt.Errorf("reset provider session: %w", lerr)
		}
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return domain.Identity{}, ctx.Err()
		}
		id, err = s.provider.Login(ctx)
	}
	if err != nil {
		s.logger.Warn("login failed", "error", err)
		return domain.Identity{}, err
	}

	client, err := s.newClient(id, true)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create remote client: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loginSeq {
		s.logger.Debug("discarding superseded login", "principal", id.Principal)
		return domain.Identity{}, domain.ErrLoginSuperseded
	}
	s.bindLocked(client, id, true)
	s.logger.Info("logged in", "principal", id.Principal)
	return id, nil
}

// Logout ends the provider session and rebinds the anonymous client. Local
// state is reset even when the provider call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.loginSeq++
	s.mu.Unlock()

	perr := s.provider.Logout(ctx)
	if perr != nil {
		s.logger.Warn("provider logout failed", "error", perr)
	}

	client, err := s.newClient(domain.Identity{}, false)
	if err != nil {
		s.logger.Warn("anonymous client unavailable", "error", err)
		client = nil
	}

	s.mu.Lock()
	s.bindLocked(client, domain.Identity{}, false)
	s.mu.Unlock()

	s.logger.Info("logged out")
	if perr != nil {
		return fmt.Errorf("logout: %w", perr)
	}
	return nil
}

// Close unbinds the client and drops every cached read
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginSeq++
	s.bindLocked(nil, domain.Identity{}, false)
}

// bindLocked swaps the client and identity and drops every cached read so
// nothing fetched under the previous identity survives. Requires s.mu.
func (s *Session) bindLocked(client domain.RemoteService, id domain.Identity, authenticated bool) {
	s.client = client
	if !authenticated {
		id = domain.Identity{}
	}
	s.identity = id
	s.authenticated = authenticated && !id.Anonymous()
	s.cache.Clear()
}
