package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/storywave/internal/config"
	"github.com/mmcdole/storywave/internal/domain"
)

// Server is the authentication surface of the story service
type Server interface {
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
	Logout(ctx context.Context) error
}

// ServerFactory returns a Server bound to token ("" before login)
type ServerFactory func(token string) Server

// Prompter asks the user for credentials
type Prompter func() (username, password string, err error)

// PasswordProvider implements domain.IdentityProvider with username/password
// login. The issued token is persisted in the config file.
type PasswordProvider struct {
	cfg       *config.Config
	newServer ServerFactory
	prompt    Prompter
	logger    *slog.Logger
}

// NewPasswordProvider creates a provider. A nil prompt reads from the terminal.
func NewPasswordProvider(cfg *config.Config, newServer ServerFactory, prompt Prompter, logger *slog.Logger) *PasswordProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if prompt == nil {
		prompt = TerminalPrompt
	}
	return &PasswordProvider{
		cfg:       cfg,
		newServer: newServer,
		prompt:    prompt,
		logger:    logger,
	}
}

// Current returns the saved identity
func (p *PasswordProvider) Current() (domain.Identity, bool) {
	if !p.cfg.HasCredentials() {
		return domain.Identity{}, false
	}
	return domain.Identity{
		Principal: p.cfg.Server.Principal,
		Username:  p.cfg.Server.Username,
		Token:     p.cfg.Server.Token,
	}, true
}

// Login prompts for credentials and saves the issued token. Returns
// ErrAlreadyAuthenticated while a token is still saved.
func (p *PasswordProvider) Login(ctx context.Context) (domain.Identity, error) {
	if p.cfg.HasCredentials() {
		return domain.Identity{}, domain.ErrAlreadyAuthenticated
	}

	username, password, err := p.prompt()
	if err != nil {
		return domain.Identity{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Identity{}, fmt.Errorf("username and password are required: %w", domain.ErrAuthFailed)
	}

	id, err := p.newServer("").Authenticate(ctx, username, password)
	if err != nil {
		p.logger.Warn("login failed", "username", username, "error", err)
		return domain.Identity{}, err
	}
	if id.Username == "" {
		id.Username = username
	}

	if err := p.cfg.SaveCredentials(id.Token, id.Principal, id.Username); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to save credentials: %w", err)
	}

	p.logger.Info("logged in", "principal", id.Principal)
	return id, nil
}

// Logout ends the server session and forgets the saved token. The token is
// cleared even when the server cannot be reached.
func (p *PasswordProvider) Logout(ctx context.Context) error {
	var serverErr error
	if token := p.cfg.Server.Token; token != "" {
		serverErr = p.newServer(token).Logout(ctx)
		if serverErr != nil {
			p.logger.Warn("server logout failed", "error", serverErr)
		}
	}

	if err := p.cfg.ClearCredentials(); err != nil {
		return errors.Join(serverErr, fmt.Errorf("failed to clear credentials: %w", err))
	}
	p.logger.Info("logged out")
	return serverErr
}
