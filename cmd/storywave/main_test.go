package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/service"
)

type fakeResource struct {
	events   chan domain.MediaEvent
	duration float64
}

func (r *fakeResource) Play() error {
	r.events <- domain.MediaEvent{Kind: domain.MediaTimeUpdate, Position: r.duration, Duration: r.duration}
	r.events <- domain.MediaEvent{Kind: domain.MediaEnded}
	return nil
}

func (r *fakeResource) Pause() error                     { return nil }
func (r *fakeResource) Seek(float64) error               { return nil }
func (r *fakeResource) SetRate(float64) error            { return nil }
func (r *fakeResource) Events() <-chan domain.MediaEvent { return r.events }

func (r *fakeResource) Close() error {
	close(r.events)
	return nil
}

type fakeBackend struct {
	err error
}

func (b *fakeBackend) Open(ctx context.Context, url string) (domain.MediaResource, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &fakeResource{events: make(chan domain.MediaEvent, 8), duration: 42}, nil
}

func TestPlayUntilEnded(t *testing.T) {
	p := service.NewPlaybackSession(&fakeBackend{}, nil, nil, nil)
	t.Cleanup(func() {
		p.Close()
		p.Wait()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := playUntilEnded(ctx, p, domain.Story{ID: "s1", Title: "Short", AudioRef: "https://cdn.example.com/s1.mp3"})
	require.NoError(t, err)
	require.NoError(t, ctx.Err())

	state := p.State()
	require.Equal(t, service.TransportPaused, state.Transport)
	require.Equal(t, 42.0, state.Position)
}

func TestPlayUntilEndedMediaError(t *testing.T) {
	p := service.NewPlaybackSession(&fakeBackend{err: domain.ErrMediaUnavailable}, nil, nil, nil)
	t.Cleanup(p.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := playUntilEnded(ctx, p, domain.Story{ID: "s1", AudioRef: "missing"})
	require.ErrorIs(t, err, domain.ErrMediaUnavailable)
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "login", "logout", "history", "play", "publish", "draft"} {
		require.Contains(t, names, want)
	}
}
