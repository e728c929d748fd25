package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/mmcdole/storywave/internal/domain"
)

// SaveStory creates or replaces the story's metadata
func (c *Client) SaveStory(ctx context.Context, story domain.Story) error {
	return c.sendJSON(ctx, http.MethodPut, storyPath(story.ID), story)
}

// SaveAudio uploads the raw audio bytes for storyID
func (c *Client) SaveAudio(ctx context.Context, storyID string, audio []byte, progress domain.ProgressFunc) error {
	body := &progressReader{r: bytes.NewReader(audio), total: len(audio), progress: progress}
	_, err := c.doRequest(ctx, request{
		method:      http.MethodPut,
		path:        storyPath(storyID, "audio"),
		body:        body,
		size:        int64(len(audio)),
		contentType: "application/octet-stream",
	})
	return err
}

func (c *Client) LikeStory(ctx context.Context, storyID string) error {
	return c.sendJSON(ctx, http.MethodPost, storyPath(storyID, "like"), nil)
}

func (c *Client) UnlikeStory(ctx context.Context, storyID string) error {
	return c.sendJSON(ctx, http.MethodDelete, storyPath(storyID, "like"), nil)
}

func (c *Client) SaveToLibrary(ctx context.Context, storyID string) error {
	return c.sendJSON(ctx, http.MethodPost, libraryPath(storyID), nil)
}

func (c *Client) UnsaveFromLibrary(ctx context.Context, storyID string) error {
	return c.sendJSON(ctx, http.MethodDelete, libraryPath(storyID), nil)
}

func (c *Client) IncrementViews(ctx context.Context, storyID string) error {
	return c.sendJSON(ctx, http.MethodPost, storyPath(storyID, "views"), nil)
}

// SaveProfile replaces the caller's profile
func (c *Client) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/me/profile", profile)
}

// GenerateDraft asks the server to write a draft; read it back with GetDraftStory
func (c *Client) GenerateDraft(ctx context.Context, req domain.DraftRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/drafts", req)
}

func libraryPath(storyID string) string {
	return "/api/me/library/" + url.PathEscape(storyID)
}

// progressReader reports cumulative bytes read to progress
type progressReader struct {
	r        *bytes.Reader
	total    int
	loaded   int
	progress domain.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += n
		if p.progress != nil {
			p.progress(p.loaded, p.total)
		}
	}
	return n, err
}
