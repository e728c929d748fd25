package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/storywave/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Storywave/1.0"
)

// Client implements domain.RemoteService against the storywave JSON API.
// An empty token makes an anonymous client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// request describes one API call
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	size        int64 // content length for non-JSON bodies
	contentType string
}

// doRequest performs an authenticated HTTP request and returns the body
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, r.query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.size > 0 {
		req.ContentLength = r.size
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("api request", "method", r.method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("api request failed", "error", err)
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return body, nil
	case http.StatusUnauthorized:
		return nil, domain.ErrAuthFailed
	case http.StatusForbidden:
		return nil, domain.ErrForbidden
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	}

	c.logger.Error("api request error", "status", resp.StatusCode, "body", string(body))
	return nil, &statusError{code: resp.StatusCode}
}

// statusError is a non-2xx response without a domain mapping
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// getJSON fetches path and decodes the response into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return c.decode(body, out)
}

// sendJSON encodes in as the request body. A nil in sends no body.
func (c *Client) sendJSON(ctx context.Context, method, path string, in any) error {
	r := request{method: method, path: path}
	if in != nil {
		body, err := encodeBody(in)
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = "application/json"
	}
	_, err := c.doRequest(ctx, r)
	return err
}

func encodeBody(in any) (io.Reader, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (c *Client) decode(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) listStories(ctx context.Context, path string, query url.Values) ([]domain.Story, error) {
	var stories []domain.Story
	if err := c.getJSON(ctx, path, query, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (c *Client) listIDs(ctx context.Context, path string) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, path, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// getOptional decodes a JSON document that may be null into an Option
func getOptional[T any](ctx context.Context, c *Client, path string) (domain.Option[T], error) {
	var v *T
	if err := c.getJSON(ctx, path, nil, &v); err != nil {
		return domain.None[T](), err
	}
	return domain.FromPtr(v), nil
}

// ListStories returns every published story
func (c *Client) ListStories(ctx context.Context) ([]domain.Story, error) {
	return c.listStories(ctx, "/api/stories", nil)
}

// ListTrending returns at most limit stories ordered by popularity
func (c *Client) ListTrending(ctx context.Context, limit int) ([]domain.Story, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	return c.listStories(ctx, "/api/stories/trending", query)
}

// ListByCategory returns published stories of one category
func (c *Client) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Story, error) {
	query := url.Values{}
	query.Set("category", string(category))
	return c.listStories(ctx, "/api/stories", query)
}

// SearchStories returns stories matching term
func (c *Client) SearchStories(ctx context.Context, term string) ([]domain.Story, error) {
	query := url.Values{}
	query.Set("q", term)
	return c.listStories(ctx, "/api/stories/search", query)
}

// ListUserStories returns the stories created by principal
func (c *Client) ListUserStories(ctx context.Context, principal string) ([]domain.Story, error) {
	return c.listStories(ctx, userPath(principal, "stories"), nil)
}

// ListUserLikedIDs returns the story IDs principal has liked
func (c *Client) ListUserLikedIDs(ctx context.Context, principal string) ([]string, error) {
	return c.listIDs(ctx, userPath(principal, "liked"))
}

// ListUserSavedIDs returns principal's library, most recent first
func (c *Client) ListUserSavedIDs(ctx context.Context, principal string) ([]string, error) {
	return c.listIDs(ctx, userPath(principal, "saved"))
}

// GetCallerProfile returns the caller's profile, absent before onboarding
func (c *Client) GetCallerProfile(ctx context.Context) (domain.Option[domain.UserProfile], error) {
	return getOptional[domain.UserProfile](ctx, c, "/api/me/profile")
}

// GetUserProfile returns principal's profile
func (c *Client) GetUserProfile(ctx context.Context, principal string) (domain.Option[domain.UserProfile], error) {
	return getOptional[domain.UserProfile](ctx, c, userPath(principal, "profile"))
}

// GetDraftStory returns the caller's most recent generated draft
func (c *Client) GetDraftStory(ctx context.Context) (domain.Option[domain.StoryDraft], error) {
	return getOptional[domain.StoryDraft](ctx, c, "/api/me/draft")
}

// ResolveAudioURL returns absolute URLs unchanged and maps blob references
// onto the server's blob endpoint
func (c *Client) ResolveAudioURL(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty audio reference: %w", domain.ErrNotFound)
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref, nil
	}

	segments := strings.Split(strings.TrimLeft(ref, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/blobs/" + strings.Join(segments, "/"), nil
}

func userPath(principal, resource string) string {
	return "/api/users/" + url.PathEscape(principal) + "/" + resource
}

func storyPath(storyID string, resource ...string) string {
	p := "/api/stories/" + url.PathEscape(storyID)
	for _, r := range resource {
		p += "/" + r
	}
	return p
}
