package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmcdole/storywave/internal/domain"
)

// loginRequest is the body of POST /api/auth/login
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the server's answer to a successful login
type loginResponse struct {
	Token     string `json:"token"`
	Principal string `json:"principal"`
	Username  string `json:"username"`
}

// Authenticate exchanges credentials for a bearer token. A 409 means the
// server still holds a session for this client.
func (c *Client) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	r := request{method: http.MethodPost, path: "/api/auth/login", contentType: "application/json"}
	body, err := encodeBody(loginRequest{Username: username, Password: password})
	if err != nil {
		return domain.Identity{}, err
	}
	r.body = body

	resp, err := c.doRequest(ctx, r)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.code == http.StatusConflict {
			return domain.Identity{}, domain.ErrAlreadyAuthenticated
		}
		return domain.Identity{}, err
	}

	var auth loginResponse
	if err := c.decode(resp, &auth); err != nil {
		return domain.Identity{}, err
	}
	if auth.Token == "" || auth.Principal == "" {
		return domain.Identity{}, fmt.Errorf("login response missing token: %w", domain.ErrAuthFailed)
	}

	return domain.Identity{
		Principal: auth.Principal,
		Username:  auth.Username,
		Token:     auth.Token,
	}, nil
}

// Logout ends the server-side session for this client's token
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	return c.sendJSON(ctx, http.MethodPost, "/api/auth/logout", nil)
}
