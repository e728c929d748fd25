package service

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/mmcdole/storywave/internal/domain"
)

// PlaybackRates are the selectable speeds, cycled in order
var PlaybackRates = []float64{1, 1.5, 2}

// Transport is the player's transport state
type Transport int

const (
	TransportStopped Transport = iota
	TransportPaused
	TransportPlaying
)

func (t Transport) String() string {
	switch t {
	case TransportStopped:
		return "stopped"
	case TransportPaused:
		return "paused"
	case TransportPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// PlaybackState is a snapshot of the playback session
type PlaybackState struct {
	Story        *domain.Story // nil when stopped
	Transport    Transport
	Position     float64 // seconds
	Duration     float64 // seconds, 0 while unknown
	Rate         float64
	URL          string // resolved audio URL
	EffectsFired bool
	Available    bool  // a media resource is open
	Err          error // last media error for the current binding
}

// Bound returns true when a story is loaded
func (s PlaybackState) Bound() bool {
	return s.Story != nil
}

// Progress returns position/duration in [0,1]
func (s PlaybackState) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.Position / s.Duration
}

// PlaybackRemote is the remote surface the player needs
type PlaybackRemote interface {
	ResolveAudioURL(ctx context.Context, ref string) (string, error)
	IncrementViews(ctx context.Context, storyID string) error
}

// HistoryRecorder receives every story that starts playing
type HistoryRecorder interface {
	Record(storyID string)
}

// PlaybackSession owns the single active media resource and the transport
// state shared by every player surface
type PlaybackSession struct {
	backend domain.MediaBackend
	remote  PlaybackRemote
	history HistoryRecorder
	logger  *slog.Logger

	mu       sync.Mutex
	state    PlaybackState
	resource domain.MediaResource
	binding  uint64 // incremented on every Open and Close
	subs     map[int]chan PlaybackState
	nextSub  int

	tasks sync.WaitGroup // event loops and best-effort effects
}

// NewPlaybackSession creates a stopped session
func NewPlaybackSession(backend domain.MediaBackend, remote PlaybackRemote, history HistoryRecorder, logger *slog.Logger) *PlaybackSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackSession{
		backend: backend,
		remote:  remote,
		history: history,
		logger:  logger,
		state:   PlaybackState{Transport: TransportStopped, Rate: PlaybackRates[0]},
		subs:    make(map[int]chan PlaybackState),
	}
}

// State returns the current snapshot
func (p *PlaybackSession) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Open binds story and leaves it paused. Opening the story that is already
// bound does nothing. The view increment and history append fire once per
// binding; a failing media backend still leaves the story bound.
func (p *PlaybackSession) Open(ctx context.Context, story domain.Story) {
	p.mu.Lock()
	if p.state.Story != nil && p.state.Story.ID == story.ID {
		p.mu.Unlock()
		return
	}
	old := p.unbindLocked()
	p.binding++
	binding := p.binding
	bound := story
	p.state = PlaybackState{
		Story:     &bound,
		Transport: TransportPaused,
		Rate:      p.state.Rate,
	}
	p.fireEffectsLocked(ctx, story.ID)
	p.notifyLocked()
	p.mu.Unlock()

	closeResource(old, p.logger)
	p.logger.Info("playback opened", "storyID", story.ID)

	url := story.AudioRef
	if p.remote != nil {
		resolved, err := p.remote.ResolveAudioURL(ctx, story.AudioRef)
		if err != nil {
			p.logger.Warn("audio resolution failed, using raw reference", "storyID", story.ID, "error", err)
		} else if resolved != "" {
			url = resolved
		}
	}

	if !p.setURL(binding, url) {
		return
	}

	res, err := p.backend.Open(ctx, url)

	p.mu.Lock()
	defer p.mu.Unlock()
	if binding != p.binding {
		// Superseded while opening
		if err == nil {
			go closeResource(res, p.logger)
		}
		return
	}
	if err != nil {
		p.logger.Warn("media resource unavailable", "storyID", story.ID, "url", url, "error", err)
		p.state.Err = err
		p.notifyLocked()
		return
	}

	p.resource = res
	p.state.Available = true
	if p.state.Rate != PlaybackRates[0] {
		if err := res.SetRate(p.state.Rate); err != nil {
			p.logger.Debug("failed to apply rate", "rate", p.state.Rate, "error", err)
		}
	}
	p.notifyLocked()

	p.tasks.Add(1)
	go p.watch(binding, res)
}

func (p *PlaybackSession) setURL(binding uint64, url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if binding != p.binding {
		return false
	}
	p.state.URL = url
	p.notifyLocked()
	return true
}

// fireEffectsLocked runs the one-shot effects for the current binding.
// History is appended synchronously; the view increment is best effort.
func (p *PlaybackSession) fireEffectsLocked(ctx context.Context, storyID string) {
	if p.state.EffectsFired {
		return
	}
	p.state.EffectsFired = true

	if p.history != nil {
		p.history.Record(storyID)
	}
	if p.remote == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		if err := p.remote.IncrementViews(detached, storyID); err != nil {
			p.logger.Debug("view increment failed", "storyID", storyID, "error", err)
		}
	}()
}

// Play starts the transport. Failures leave the session paused.
func (p *PlaybackSession) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Story == nil {
		return
	}
	if p.resource == nil {
		p.logger.Debug("play ignored, no media resource", "storyID", p.state.Story.ID)
		p.state.Transport = TransportPaused
		p.notifyLocked()
		return
	}
	if p.state.Duration > 0 && p.state.Position >= p.state.Duration {
		// Restart an ended story from the beginning
		if err := p.resource.Seek(0); err == nil {
			p.state.Position = 0
		}
	}
	if err := p.resource.Play(); err != nil {
		p.logger.Warn("play failed", "storyID", p.state.Story.ID, "error", err)
		p.state.Transport = TransportPaused
		p.notifyLocked()
		return
	}
	p.state.Transport = TransportPlaying
	p.notifyLocked()
}

// Pause stops the transport, keeping the position
func (p *PlaybackSession) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Story == nil {
		return
	}
	if p.resource != nil {
		if err := p.resource.Pause(); err != nil {
			p.logger.Debug("pause failed", "error", err)
		}
	}
	p.state.Transport = TransportPaused
	p.notifyLocked()
}

// Toggle switches between playing and paused
func (p *PlaybackSession) Toggle() {
	if p.State().Transport == TransportPlaying {
		p.Pause()
		return
	}
	p.Play()
}

// Seek moves to position, clamped to [0, duration]. The position updates
// immediately whether or not the resource accepts the seek.
func (p *PlaybackSession) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Story == nil {
		return
	}
	p.seekLocked(position)
}

// Skip moves by delta seconds with the same clamping as Seek
func (p *PlaybackSession) Skip(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Story == nil {
		return
	}
	p.seekLocked(p.state.Position + delta)
}

func (p *PlaybackSession) seekLocked(position float64) {
	position = clamp(position, 0, p.state.Duration)
	p.state.Position = position
	if p.resource != nil {
		if err := p.resource.Seek(position); err != nil {
			p.logger.Debug("seek failed", "position", position, "error", err)
		}
	}
	p.notifyLocked()
}

// CycleRate advances to the next playback rate, wrapping, and returns it
func (p *PlaybackSession) CycleRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := PlaybackRates[0]
	for i, r := range PlaybackRates {
		if r == p.state.Rate {
			next = PlaybackRates[(i+1)%len(PlaybackRates)]
			break
		}
	}
	p.state.Rate = next
	if p.resource != nil {
		if err := p.resource.SetRate(next); err != nil {
			p.logger.Debug("failed to apply rate", "rate", next, "error", err)
		}
	}
	p.notifyLocked()
	return next
}

// Close stops playback and releases the resource
func (p *PlaybackSession) Close() {
	p.mu.Lock()
	old := p.unbindLocked()
	p.binding++
	p.state = PlaybackState{Transport: TransportStopped, Rate: p.state.Rate}
	p.notifyLocked()
	p.mu.Unlock()

	closeResource(old, p.logger)
}

// Wait blocks until event loops and best-effort effects have finished.
// Call after Close.
func (p *PlaybackSession) Wait() {
	p.tasks.Wait()
}

// Subscribe returns a channel receiving a snapshot after every change.
// Sends never block; a slow subscriber should read State on the next event.
func (p *PlaybackSession) Subscribe() (<-chan PlaybackState, func()) {
	ch := make(chan PlaybackState, 16)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// watch applies inbound resource events until the resource closes
func (p *PlaybackSession) watch(binding uint64, res domain.MediaResource) {
	defer p.tasks.Done()
	for ev := range res.Events() {
		p.apply(binding, ev)
	}
}

func (p *PlaybackSession) apply(binding uint64, ev domain.MediaEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if binding != p.binding || p.state.Story == nil {
		return // Event from a previous binding
	}

	switch ev.Kind {
	case domain.MediaDurationChange:
		if ev.Duration >= 0 && !math.IsInf(ev.Duration, 1) {
			p.state.Duration = ev.Duration
			p.state.Position = clamp(p.state.Position, 0, ev.Duration)
		}
	case domain.MediaTimeUpdate:
		if ev.Duration > 0 && !math.IsInf(ev.Duration, 1) {
			p.state.Duration = ev.Duration
		}
		p.state.Position = clamp(ev.Position, 0, p.state.Duration)
	case domain.MediaEnded:
		p.state.Transport = TransportPaused
		p.state.Position = p.state.Duration
	case domain.MediaError:
		p.logger.Warn("media error", "storyID", p.state.Story.ID, "error", ev.Err)
		p.state.Transport = TransportPaused
		p.state.Err = ev.Err
	}
	p.notifyLocked()
}

// unbindLocked detaches the current resource and returns it for closing
// outside the lock
func (p *PlaybackSession) unbindLocked() domain.MediaResource {
	old := p.resource
	p.resource = nil
	return old
}

func (p *PlaybackSession) snapshotLocked() PlaybackState {
	s := p.state
	if s.Story != nil {
		story := *s.Story
		s.Story = &story
	}
	return s
}

func (p *PlaybackSession) notifyLocked() {
	if len(p.subs) == 0 {
		return
	}
	s := p.snapshotLocked()
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default: // Non-blocking if subscriber is behind
		}
	}
}

func closeResource(res domain.MediaResource, logger *slog.Logger) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		logger.Debug("failed to close media resource", "error", err)
	}
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if hi < lo || math.IsNaN(hi) {
		hi = lo
	}
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
